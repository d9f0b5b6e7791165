// Package storage defines the skill tree file-system abstraction.
package storage

import "github.com/dagster-io/skills/internal/models"

// Provider is the interface for skill tree file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to the root).
	List(dir string) ([]models.DocumentMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Exists reports whether path (relative to the root) is a regular file.
	Exists(path string) bool
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
}
