//go:build sqlite_fts5

package graph

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dagster-io/skills/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS references_fts USING fts5(
			skill UNINDEXED,
			path UNINDEXED,
			description,
			body,
			triggers,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, skill, path, description, body string, triggers []string) error {
	_, err := tx.Exec(`INSERT INTO references_fts (skill, path, description, body, triggers) VALUES (?, ?, ?, ?, ?)`,
		skill, path, description, body, strings.Join(triggers, " "))
	if err != nil {
		return fmt.Errorf("graph: insert fts: %w", err)
	}
	return nil
}

func ftsDeleteSkill(tx *sql.Tx, skill string) error {
	if _, err := tx.Exec(`DELETE FROM references_fts WHERE skill = ?`, skill); err != nil {
		return fmt.Errorf("graph: clear fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT skill,
		       path,
		       description,
		       snippet(references_fts, 3, '<b>', '</b>', '...', 64)
		FROM references_fts
		WHERE references_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("graph: search: %w", err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.Skill, &r.Path, &r.Description, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
