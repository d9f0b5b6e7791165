// Package skillindex validates reference documents and generates the routing
// index that lists them.
//
// The references tree is walked bottom-up in sorted order. Every markdown file
// contributes one bullet built from its frontmatter. A subdirectory whose
// index file declares "type: index" is deferred: the parent lists only that
// index file, and the subdirectory's own listing is generated separately for
// injection into the index file itself.
package skillindex

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/frontmatter"
	"github.com/dagster-io/skills/internal/links"
	"github.com/dagster-io/skills/internal/skill"
)

const markdownExt = ".md"

// Result is the output of one generation pass.
type Result struct {
	// Primary is the listing for the entry file.
	Primary string
	// Deferred maps the absolute path of each deferred index file to its listing.
	Deferred map[string]string
}

// DeferredPaths returns the deferred index paths in sorted order.
func (r *Result) DeferredPaths() []string {
	out := make([]string, 0, len(r.Deferred))
	for p := range r.Deferred {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Generator builds listings for one skill.
type Generator struct {
	refsDir    string
	indexFile  string
	indexStem  string
	linkPrefix string
	logger     *slog.Logger
}

// NewGenerator returns a Generator for s. A nil logger discards warnings.
func NewGenerator(s skill.Skill, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	idx := s.Layout.IndexFile
	return &Generator{
		refsDir:    links.Canonical(s.RefsDir()),
		indexFile:  idx,
		indexStem:  strings.TrimSuffix(idx, filepath.Ext(idx)),
		linkPrefix: s.Layout.RefsLinkPrefix(),
		logger:     logger,
	}
}

// Generate walks the references tree and returns the entry-file listing plus
// one listing per deferred index. Frontmatter is read raw; callers run
// ValidateTree first.
func (g *Generator) Generate() (*Result, error) {
	if !isDir(g.refsDir) {
		return nil, fmt.Errorf("skillindex: references directory %s: %w", g.refsDir, apperr.ErrNotFound)
	}
	entries, deferred, err := g.walk(g.refsDir, "", g.linkPrefix)
	if err != nil {
		return nil, err
	}
	return &Result{Primary: strings.Join(entries, "\n"), Deferred: deferred}, nil
}

// walk lists dir, whose path relative to the current emission root is rel.
// It returns the entries for the current target and the deferred listings
// found below dir.
func (g *Generator) walk(dir, rel, linkPrefix string) ([]string, map[string]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("skillindex: read %s: %w", dir, err)
	}

	var files, dirs []string
	for _, item := range items {
		name := item.Name()
		if name == g.indexFile {
			continue
		}
		full := filepath.Join(dir, name)
		switch {
		case isRegular(full) && filepath.Ext(name) == markdownExt:
			files = append(files, name)
		case isDir(full):
			dirs = append(dirs, name)
		}
	}

	var out []string
	deferred := make(map[string]string)

	for _, name := range files {
		entry, ok, err := g.emit(filepath.Join(dir, name), path.Join(rel, name), linkPrefix)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}

	for _, name := range dirs {
		sub := filepath.Join(dir, name)
		childRel := path.Join(rel, name)
		index := filepath.Join(sub, g.indexFile)

		var fm map[string]any
		if isRegular(index) {
			if fm, err = frontmatter.ParseFile(index); err != nil {
				return nil, nil, fmt.Errorf("skillindex: %w", err)
			}
		}

		if fm == nil {
			// Undocumented directory: its files are listed as if they lived in dir.
			g.logger.Warn("skillindex: flattened directory without index",
				slog.String("path", sub),
				slog.String("index_file", g.indexFile))
			entries, nested, err := g.walk(sub, childRel, linkPrefix)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, entries...)
			merge(deferred, nested)
			continue
		}

		indexRel := path.Join(childRel, g.indexFile)
		out = append(out, g.format(fm, "./"+linkPrefix+indexRel, g.displayText(indexRel)))

		if fm["type"] == frontmatter.TypeIndex {
			entries, nested, err := g.walk(sub, "", "")
			if err != nil {
				return nil, nil, err
			}
			deferred[links.Canonical(index)] = strings.Join(entries, "\n")
			merge(deferred, nested)
			continue
		}

		// Leaf group: the index file plus its markdown siblings, no deeper.
		siblings, err := os.ReadDir(sub)
		if err != nil {
			return nil, nil, fmt.Errorf("skillindex: read %s: %w", sub, err)
		}
		for _, s := range siblings {
			if s.Name() == g.indexFile || filepath.Ext(s.Name()) != markdownExt {
				continue
			}
			p := filepath.Join(sub, s.Name())
			if !isRegular(p) {
				continue
			}
			entry, ok, err := g.emit(p, path.Join(childRel, s.Name()), linkPrefix)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				out = append(out, entry)
			}
		}
	}

	return out, deferred, nil
}

// emit renders the entry for one file. Files without frontmatter emit nothing.
func (g *Generator) emit(file, rel, linkPrefix string) (string, bool, error) {
	fm, err := frontmatter.ParseFile(file)
	if err != nil {
		return "", false, fmt.Errorf("skillindex: %w", err)
	}
	if fm == nil {
		return "", false, nil
	}
	return g.format(fm, "./"+linkPrefix+rel, g.displayText(rel)), true, nil
}

// displayText strips ".md" and a trailing "/<index stem>" from rel.
func (g *Generator) displayText(rel string) string {
	text := strings.TrimSuffix(rel, markdownExt)
	return strings.TrimSuffix(text, "/"+g.indexStem)
}

// format renders "- [text](link) — description *(t1; t2)*".
func (g *Generator) format(fm map[string]any, link, text string) string {
	line := fmt.Sprintf("- [%s](%s) — %s", text, link, stringValue(fm["description"]))
	if triggers := stringList(fm["triggers"]); len(triggers) > 0 {
		line += " *(" + strings.Join(triggers, "; ") + ")*"
	}
	return line
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, stringValue(item))
	}
	return out
}

func isRegular(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
