//go:build !sqlite_fts5

package graph

import (
	"database/sql"
	"fmt"

	"github.com/dagster-io/skills/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the documents table.
	return nil
}

func ftsInsert(_ *sql.Tx, _, _, _, _ string, _ []string) error { return nil }

func ftsDeleteSkill(_ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT skill, path, description, substr(body, 1, 200)
		FROM documents
		WHERE description LIKE ? OR body LIKE ? OR triggers LIKE ?
		ORDER BY skill, path
		LIMIT ?
	`, like, like, like, limit)
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
