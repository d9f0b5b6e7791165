package graph

import "github.com/dagster-io/skills/internal/models"

// Store defines the link graph operations consumers depend on.
type Store interface {
	ReplaceSkill(skill string, docs []DocumentRow, links []models.Link) error
	Checksums(skill string) (map[string]string, error)
	Documents(skill string) ([]models.Document, error)
	Backlinks(skill, target string) ([]models.Link, error)
	BrokenLinks(skill string) ([]models.Link, error)
	Unreachable(skill string) ([]string, error)
	Search(query string, limit int) ([]models.SearchResult, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
