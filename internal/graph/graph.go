// Package graph stores the link graph of every skill in SQLite so reports can
// be served without rescanning the tree: documents with their frontmatter and
// reachability, and every local link with its existence status. Full-text
// search over reference bodies uses FTS5 when built with the sqlite_fts5 tag.
package graph

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	skill       TEXT NOT NULL,
	path        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	triggers    TEXT NOT NULL DEFAULT '[]',
	type        TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	reachable   INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (skill, path)
);

CREATE TABLE IF NOT EXISTS links (
	skill  TEXT NOT NULL,
	source TEXT NOT NULL,
	line   INTEGER NOT NULL,
	raw    TEXT NOT NULL,
	target TEXT NOT NULL,
	exists_on_disk INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(skill, source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(skill, target);
`

// DB wraps a sql.DB with graph-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("graph: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
