package reach

import (
	"fmt"
	"path/filepath"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/links"
)

// LinkStatus answers "does this link's target exist" for one link.
type LinkStatus struct {
	links.Link
	Exists bool `json:"exists"`
}

// FileStatus answers "is this file reachable from the entry file" for one file.
type FileStatus struct {
	Path      string `json:"path"`
	Rel       string `json:"rel"`
	Reachable bool   `json:"reachable"`
}

// Report is the per-link and per-file view of one skill tree.
type Report struct {
	Root  string       `json:"root"`
	Entry string       `json:"entry"`
	Links []LinkStatus `json:"links"`
	Files []FileStatus `json:"files"`
}

// Report builds the full link and reachability report for the skill at root.
func (a *Analyzer) Report(root, entry string) (*Report, error) {
	set, err := a.Reachable(entry)
	if err != nil {
		return nil, err
	}
	statuses, err := a.linkStatuses(root)
	if err != nil {
		return nil, err
	}
	files, err := a.Files(root)
	if err != nil {
		return nil, err
	}

	base := links.Canonical(root)
	r := &Report{
		Root:  base,
		Entry: links.Canonical(entry),
		Links: statuses,
		Files: make([]FileStatus, 0, len(files)),
	}
	for _, f := range files {
		r.Files = append(r.Files, FileStatus{Path: f, Rel: relTo(base, f), Reachable: set.Has(f)})
	}
	return r, nil
}

// Issues lists every broken link and every unreachable file, links first.
func (r *Report) Issues() apperr.Issues {
	var out apperr.Issues
	entryName := filepath.Base(r.Entry)
	for _, l := range r.Links {
		if l.Exists {
			continue
		}
		out = append(out, apperr.Issue{
			Kind:   apperr.ErrBrokenLink,
			Path:   relTo(r.Root, l.Source),
			Line:   l.Line,
			Reason: fmt.Sprintf("link '%s' resolves to %s which does not exist", l.Raw, l.Resolved),
		})
	}
	for _, f := range r.Files {
		if f.Reachable {
			continue
		}
		out = append(out, apperr.Issue{
			Kind:   apperr.ErrUnreachable,
			Path:   f.Rel,
			Reason: fmt.Sprintf("file is not reachable from %s", entryName),
		})
	}
	return out
}

// Orphans returns the relative paths of unreachable files.
func (r *Report) Orphans() []string {
	var out []string
	for _, f := range r.Files {
		if !f.Reachable {
			out = append(out, f.Rel)
		}
	}
	return out
}

func relTo(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}
