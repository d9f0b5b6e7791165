package graph

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dagster-io/skills/internal/frontmatter"
	"github.com/dagster-io/skills/internal/models"
	"github.com/dagster-io/skills/internal/reach"
	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/storage"
)

// Sync brings the rows of s up to date with the tree on disk. store must be
// rooted at s.Root. It reports whether anything was rewritten; a tree whose
// file checksums all match the stored ones is left alone.
func Sync(db Store, s skill.Skill, store storage.Provider, analyzer *reach.Analyzer, logger *slog.Logger) (bool, error) {
	rep, err := analyzer.Report(s.Root, s.Entry())
	if err != nil {
		return false, fmt.Errorf("graph: sync %s: %w", s.Name, err)
	}
	stored, err := db.Checksums(s.Name)
	if err != nil {
		return false, err
	}

	docs := make([]DocumentRow, 0, len(rep.Files))
	current := make(map[string]string, len(rep.Files))
	for _, f := range rep.Files {
		data, err := store.Read(f.Rel)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("skill", s.Name), slog.String("path", f.Rel), slog.String("error", err.Error()))
			continue
		}
		doc := DocumentRow{Document: models.Document{
			Skill:     s.Name,
			Path:      f.Rel,
			Checksum:  storage.Checksum(data),
			Reachable: f.Reachable,
		}}
		if info, err := os.Stat(f.Path); err == nil {
			doc.UpdatedAt = info.ModTime()
		}
		if filepath.Ext(f.Rel) == ".md" {
			describe(&doc, data)
		}
		current[f.Rel] = doc.Checksum
		docs = append(docs, doc)
	}

	if sameChecksums(stored, current) {
		logger.Debug("sync: unchanged", slog.String("skill", s.Name))
		return false, nil
	}

	edges := make([]models.Link, 0, len(rep.Links))
	for _, l := range rep.Links {
		edges = append(edges, models.Link{
			Skill:  s.Name,
			Source: rel(rep.Root, l.Source),
			Line:   l.Line,
			Raw:    l.Raw,
			Target: rel(rep.Root, l.Resolved),
			Exists: l.Exists,
		})
	}

	if err := db.ReplaceSkill(s.Name, docs, edges); err != nil {
		return false, err
	}
	logger.Debug("sync: indexed", slog.String("skill", s.Name), slog.Int("documents", len(docs)), slog.Int("links", len(edges)))
	return true, nil
}

// describe copies the frontmatter fields and body of a markdown file into doc.
// Malformed frontmatter leaves the fields empty; validation reports it.
func describe(doc *DocumentRow, data []byte) {
	doc.Body = string(frontmatter.Body(data))
	fm, err := frontmatter.Parse(data)
	if err != nil || fm == nil {
		return
	}
	if s, ok := fm["description"].(string); ok {
		doc.Description = s
	}
	if s, ok := fm["type"].(string); ok {
		doc.Type = s
	}
	if items, ok := fm["triggers"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				doc.Triggers = append(doc.Triggers, s)
			}
		}
	}
}

func sameChecksums(a, b map[string]string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}
