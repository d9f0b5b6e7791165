package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dagster-io/skills/internal/models"
)

// DocumentRow is a document plus the body indexed for search.
type DocumentRow struct {
	models.Document
	Body string
}

// ReplaceSkill swaps every row of skill for docs and links within a transaction.
func (db *DB) ReplaceSkill(skill string, docs []DocumentRow, links []models.Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM documents WHERE skill = ?`, skill); err != nil {
		return fmt.Errorf("graph: clear documents: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE skill = ?`, skill); err != nil {
		return fmt.Errorf("graph: clear links: %w", err)
	}
	if err := ftsDeleteSkill(tx, skill); err != nil {
		return err
	}

	docStmt, err := tx.Prepare(`
		INSERT INTO documents (skill, path, description, triggers, type, checksum, body, reachable, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("graph: prepare document insert: %w", err)
	}
	defer docStmt.Close()
	for _, d := range docs {
		triggers, _ := json.Marshal(nonNil(d.Triggers))
		if _, err := docStmt.Exec(skill, d.Path, d.Description, string(triggers), d.Type,
			d.Checksum, d.Body, d.Reachable, d.UpdatedAt); err != nil {
			return fmt.Errorf("graph: insert document %s: %w", d.Path, err)
		}
		if err := ftsInsert(tx, skill, d.Path, d.Description, d.Body, d.Triggers); err != nil {
			return err
		}
	}

	if len(links) > 0 {
		linkStmt, err := tx.Prepare(`INSERT INTO links (skill, source, line, raw, target, exists_on_disk) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("graph: prepare link insert: %w", err)
		}
		defer linkStmt.Close()
		for _, l := range links {
			if _, err := linkStmt.Exec(skill, l.Source, l.Line, l.Raw, l.Target, l.Exists); err != nil {
				return fmt.Errorf("graph: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Checksums returns path → checksum for every stored document of skill.
func (db *DB) Checksums(skill string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents WHERE skill = ?`, skill)
	if err != nil {
		return nil, fmt.Errorf("graph: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Documents returns every stored document of skill ordered by path.
func (db *DB) Documents(skill string) ([]models.Document, error) {
	rows, err := db.conn.Query(`
		SELECT skill, path, description, triggers, type, checksum, reachable, updated_at
		FROM documents WHERE skill = ? ORDER BY path
	`, skill)
	if err != nil {
		return nil, fmt.Errorf("graph: documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		var triggers string
		if err := rows.Scan(&d.Skill, &d.Path, &d.Description, &triggers, &d.Type,
			&d.Checksum, &d.Reachable, &d.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(triggers), &d.Triggers)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Backlinks returns every link of skill whose target is the given path.
func (db *DB) Backlinks(skill, target string) ([]models.Link, error) {
	return db.queryLinks(`SELECT skill, source, line, raw, target, exists_on_disk FROM links
		WHERE skill = ? AND target = ? ORDER BY source, line`, skill, target)
}

// BrokenLinks returns every link of skill whose target does not exist.
func (db *DB) BrokenLinks(skill string) ([]models.Link, error) {
	return db.queryLinks(`SELECT skill, source, line, raw, target, exists_on_disk FROM links
		WHERE skill = ? AND exists_on_disk = 0 ORDER BY source, line`, skill)
}

// Unreachable returns the paths of skill that the entry file cannot reach.
func (db *DB) Unreachable(skill string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents WHERE skill = ? AND reachable = 0 ORDER BY path`, skill)
	if err != nil {
		return nil, fmt.Errorf("graph: unreachable: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) queryLinks(query string, args ...any) ([]models.Link, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("graph: links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

func scanLinks(rows *sql.Rows) ([]models.Link, error) {
	var out []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.Skill, &l.Source, &l.Line, &l.Raw, &l.Target, &l.Exists); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
