// Package regen plans and applies index regeneration for one skill: it
// validates the references tree, generates the listings and injects them
// into the entry file and every deferred index file.
package regen

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/inject"
	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/skillindex"
	"github.com/dagster-io/skills/internal/storage"
)

// Update is the planned new content of one target file.
type Update struct {
	// Path is relative to the skill root, slash-separated.
	Path    string `json:"path"`
	Current string `json:"-"`
	Next    string `json:"-"`
}

// Changed reports whether applying the update would modify the file.
func (u Update) Changed() bool { return u.Current != u.Next }

// Plan is the outcome of one regeneration pass, computed without writing.
type Plan struct {
	Skill   skill.Skill
	Updates []Update
	// Skipped lists targets whose markers are missing. The other targets are
	// still planned.
	Skipped apperr.Issues
}

// Build validates s and plans the injection of freshly generated listings.
// Frontmatter problems abort the pass and are returned as apperr.Issues.
func Build(s skill.Skill, store storage.Provider, logger *slog.Logger) (*Plan, error) {
	issues, err := skillindex.ValidateTree(s)
	if err != nil {
		return nil, err
	}
	if err := issues.Err(); err != nil {
		return nil, err
	}

	res, err := skillindex.NewGenerator(s, logger).Generate()
	if err != nil {
		return nil, err
	}

	plan := &Plan{Skill: s}
	if err := plan.add(store, s.Layout.Markers, s.Layout.EntryFile, res.Primary); err != nil {
		return nil, err
	}
	for _, abs := range res.DeferredPaths() {
		p, err := filepath.Rel(s.Root, abs)
		if err != nil {
			return nil, fmt.Errorf("regen: %w", err)
		}
		p = filepath.ToSlash(p)
		if err := plan.add(store, s.Layout.Markers, p, res.Deferred[abs]); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (p *Plan) add(store storage.Provider, m inject.Markers, path, content string) error {
	data, err := store.Read(path)
	if err != nil {
		return fmt.Errorf("regen: %w", err)
	}
	current := string(data)
	next, err := m.Inject(current, content)
	if err != nil {
		var me *inject.MarkerError
		if errors.As(err, &me) {
			p.Skipped = append(p.Skipped, apperr.Issue{Kind: apperr.ErrMissingMarkers, Path: path, Reason: me.Reason})
			return nil
		}
		return fmt.Errorf("regen: inject %s: %w", path, err)
	}
	p.Updates = append(p.Updates, Update{Path: path, Current: current, Next: next})
	return nil
}

// Drift returns the updates whose target is out of date. It never writes.
func (p *Plan) Drift() []Update {
	var out []Update
	for _, u := range p.Updates {
		if u.Changed() {
			out = append(out, u)
		}
	}
	return out
}

// DriftIssues renders Drift as issues of kind apperr.ErrDrift.
func (p *Plan) DriftIssues() apperr.Issues {
	var out apperr.Issues
	for _, u := range p.Drift() {
		out = append(out, apperr.Issue{Kind: apperr.ErrDrift, Path: u.Path, Reason: "generated index is out of date"})
	}
	return out
}

// Apply writes every changed target and returns the ones written. Unchanged
// files are not touched.
func (p *Plan) Apply(store storage.Provider) ([]Update, error) {
	var written []Update
	for _, u := range p.Drift() {
		if err := store.Write(u.Path, []byte(u.Next)); err != nil {
			return written, fmt.Errorf("regen: %w", err)
		}
		written = append(written, u)
	}
	return written, nil
}
