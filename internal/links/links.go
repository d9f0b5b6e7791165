// Package links extracts local markdown links and resolves them to files on disk.
package links

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dagster-io/skills/internal/fence"
)

var linkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)

// Link is one local link occurrence resolved to an absolute path.
type Link struct {
	Source   string `json:"source"`
	Line     int    `json:"line"`
	Raw      string `json:"raw"`
	Resolved string `json:"resolved"`
}

// Extractor finds local links. Directory targets resolve to IndexFile inside
// the directory.
type Extractor struct {
	IndexFile    string
	IgnoreFenced bool
}

// New returns an Extractor substituting indexFile for directory targets.
func New(indexFile string, ignoreFenced bool) *Extractor {
	return &Extractor{IndexFile: indexFile, IgnoreFenced: ignoreFenced}
}

// ExtractFile reads the markdown file at path and extracts its local links.
func (e *Extractor) ExtractFile(path string) ([]Link, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("links: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("links: read %s: %w", path, err)
	}
	return e.Extract(Canonical(abs), data), nil
}

// Extract returns the local links in content, resolved against the directory
// of source. Remote links, same-document anchors and empty targets are dropped.
func (e *Extractor) Extract(source string, content []byte) []Link {
	lines := strings.Split(string(content), "\n")
	var mask []bool
	if e.IgnoreFenced {
		mask = fence.Mask(lines)
	}

	dir := filepath.Dir(source)
	var out []Link
	for i, line := range lines {
		if mask != nil && mask[i] {
			continue
		}
		for _, m := range linkRe.FindAllStringSubmatch(line, -1) {
			raw := m[2]
			if isRemoteOrAnchor(raw) {
				continue
			}
			target := raw
			if idx := strings.Index(target, "#"); idx >= 0 {
				target = target[:idx]
			}
			if target == "" {
				continue
			}
			out = append(out, Link{
				Source:   source,
				Line:     i + 1,
				Raw:      raw,
				Resolved: e.Resolve(dir, target),
			})
		}
	}
	return out
}

// Resolve turns target, relative to dir, into a canonical absolute path.
func (e *Extractor) Resolve(dir, target string) string {
	p := filepath.FromSlash(target)
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	p = Canonical(filepath.Clean(p))
	if strings.HasSuffix(target, "/") || isDir(p) {
		p = filepath.Join(p, e.IndexFile)
	}
	return p
}

func isRemoteOrAnchor(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "#")
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Canonical resolves symlinks in the longest existing prefix of p and
// returns a cleaned absolute path. Non-existent tails are kept as written.
func Canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	var tail []string
	cur := abs
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}
