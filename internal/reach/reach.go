// Package reach computes which files of a skill tree are reachable by links from its entry file.
package reach

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/links"
)

const markdownExt = ".md"

// Set holds canonical absolute paths.
type Set map[string]struct{}

// Has reports membership of a canonical path.
func (s Set) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Analyzer walks link graphs and skill trees.
type Analyzer struct {
	extractor *links.Extractor
	ignore    []string
}

// NewAnalyzer returns an Analyzer using ex for link extraction. Files whose
// slash-separated path relative to the skill root matches one of the ignore
// globs are left out of tree walks.
func NewAnalyzer(ex *links.Extractor, ignore []string) *Analyzer {
	return &Analyzer{extractor: ex, ignore: ignore}
}

// Reachable runs a breadth-first search over local links starting at entry.
// Every resolved target of a visited markdown file joins the set, markdown
// targets are traversed further.
func (a *Analyzer) Reachable(entry string) (Set, error) {
	start := links.Canonical(entry)
	if !isFile(start) {
		return nil, fmt.Errorf("reach: entry %s: %w", entry, apperr.ErrNotFound)
	}

	reachable := Set{}
	visited := make(map[string]bool)
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		reachable[current] = struct{}{}

		if !isMarkdown(current) || !isFile(current) {
			continue
		}
		found, err := a.extractor.ExtractFile(current)
		if err != nil {
			return nil, fmt.Errorf("reach: %w", err)
		}
		for _, l := range found {
			reachable[l.Resolved] = struct{}{}
			if isMarkdown(l.Resolved) && !visited[l.Resolved] {
				queue = append(queue, l.Resolved)
			}
		}
	}
	return reachable, nil
}

// Files lists every regular file under root in lexical order as canonical
// absolute paths, skipping ignored ones.
func (a *Analyzer) Files(root string) ([]string, error) {
	base := links.Canonical(root)
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !isFile(p) {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		if a.ignored(base, p) {
			return nil
		}
		out = append(out, links.Canonical(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reach: walk %s: %w", root, err)
	}
	return out, nil
}

// Orphans returns every file under root that is not in set.
func (a *Analyzer) Orphans(root string, set Set) ([]string, error) {
	files, err := a.Files(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		if !set.Has(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// BrokenLinks returns every local link in every markdown file under root
// whose target does not exist.
func (a *Analyzer) BrokenLinks(root string) ([]links.Link, error) {
	statuses, err := a.linkStatuses(root)
	if err != nil {
		return nil, err
	}
	var out []links.Link
	for _, s := range statuses {
		if !s.Exists {
			out = append(out, s.Link)
		}
	}
	return out, nil
}

func (a *Analyzer) linkStatuses(root string) ([]LinkStatus, error) {
	files, err := a.Files(root)
	if err != nil {
		return nil, err
	}
	var out []LinkStatus
	for _, f := range files {
		if !isMarkdown(f) {
			continue
		}
		found, err := a.extractor.ExtractFile(f)
		if err != nil {
			return nil, fmt.Errorf("reach: %w", err)
		}
		for _, l := range found {
			out = append(out, LinkStatus{Link: l, Exists: exists(l.Resolved)})
		}
	}
	return out, nil
}

func (a *Analyzer) ignored(root, p string) bool {
	if len(a.ignore) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range a.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func isMarkdown(p string) bool {
	return filepath.Ext(p) == markdownExt
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
