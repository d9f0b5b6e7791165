// Package skill locates skill trees and describes their file layout.
package skill

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/inject"
	"github.com/dagster-io/skills/internal/links"
)

// Layout names the well-known files of a skill tree.
type Layout struct {
	EntryFile     string         `yaml:"entry_file"`
	ReferencesDir string         `yaml:"references_dir"`
	IndexFile     string         `yaml:"index_file"`
	// LinkPrefix is prepended to entry-file links. Empty means derived from
	// ReferencesDir.
	LinkPrefix    string         `yaml:"link_prefix"`
	Markers       inject.Markers `yaml:",inline"`
}

// DefaultLayout returns SKILL.md + references/ with INDEX.md index files.
func DefaultLayout() Layout {
	return Layout{
		EntryFile:     "SKILL.md",
		ReferencesDir: "references",
		IndexFile:     "INDEX.md",
		Markers:       inject.DefaultMarkers(),
	}
}

// RefsLinkPrefix returns the prefix entry-file links use to reach the
// references directory, e.g. "references/".
func (l Layout) RefsLinkPrefix() string {
	if l.LinkPrefix != "" {
		return l.LinkPrefix
	}
	return DerivedLinkPrefix(l.ReferencesDir)
}

// DerivedLinkPrefix turns a references directory into its link prefix.
func DerivedLinkPrefix(refsDir string) string {
	return path.Clean(filepath.ToSlash(refsDir)) + "/"
}

// Skill is one skill tree on disk.
type Skill struct {
	Name   string `json:"name"`
	Root   string `json:"root"`
	Layout Layout `json:"-"`
}

// Entry returns the absolute path of the entry file.
func (s Skill) Entry() string {
	return filepath.Join(s.Root, s.Layout.EntryFile)
}

// RefsDir returns the absolute path of the references directory.
func (s Skill) RefsDir() string {
	return filepath.Join(s.Root, s.Layout.ReferencesDir)
}

// Open returns the skill rooted at root.
func Open(root string, layout Layout) (Skill, error) {
	abs := links.Canonical(root)
	info, err := os.Stat(abs)
	if err != nil {
		return Skill{}, fmt.Errorf("skill: stat root %s: %w", root, apperr.ErrNotFound)
	}
	if !info.IsDir() {
		return Skill{}, fmt.Errorf("skill: root is not a directory: %s", abs)
	}
	return Skill{Name: filepath.Base(abs), Root: abs, Layout: layout}, nil
}

// Discover finds skills under dir. A skill named n lives either at
// dir/n/skills/n/ (plugin layout) or directly at dir/n/, and must hold the
// entry file. Results are sorted by name.
func Discover(dir string, layout Layout) ([]Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("skill: read %s: %w", dir, err)
	}
	var out []Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidates := []string{
			filepath.Join(dir, e.Name(), "skills", e.Name()),
			filepath.Join(dir, e.Name()),
		}
		for _, c := range candidates {
			if !isFile(filepath.Join(c, layout.EntryFile)) {
				continue
			}
			s, err := Open(c, layout)
			if err != nil {
				return nil, err
			}
			s.Name = e.Name()
			out = append(out, s)
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
