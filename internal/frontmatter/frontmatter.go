// Package frontmatter extracts and validates the YAML block at the head of reference documents.
package frontmatter

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dagster-io/skills/internal/apperr"
)

// TypeIndex marks an index file that owns the listing of its directory.
const TypeIndex = "index"

var (
	openFence  = []byte("---\n")
	closeFence = []byte("\n---")
)

// ParseError reports an unparsable frontmatter block.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("frontmatter: %v", e.Err)
	}
	return fmt.Sprintf("frontmatter: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{apperr.ErrMalformedYAML, e.Err}
}

// Split returns the raw YAML between a leading "---\n" and the first "\n---"
// that follows it. ok is false when the document has no such block.
func Split(data []byte) (block []byte, ok bool) {
	if !bytes.HasPrefix(data, openFence) {
		return nil, false
	}
	rest := data[len(openFence):]
	idx := bytes.Index(rest, closeFence)
	if idx < 0 {
		return nil, false
	}
	return rest[:idx], true
}

// Body returns data without its frontmatter block and closing fence line.
func Body(data []byte) []byte {
	block, ok := Split(data)
	if !ok {
		return data
	}
	rest := data[len(openFence)+len(block)+len(closeFence):]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		return rest[i+1:]
	}
	return nil
}

// Parse decodes the frontmatter of data without schema checks. A missing
// block, a null document and an empty mapping all yield a nil map.
func Parse(data []byte) (map[string]any, error) {
	block, ok := Split(data)
	if !ok {
		return nil, nil
	}
	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(fm) == 0 {
		return nil, nil
	}
	return fm, nil
}

// ParseFile reads path and decodes its frontmatter like Parse.
func ParseFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: read %s: %w", path, err)
	}
	fm, err := Parse(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return fm, nil
}

// LoadFile reads path and decodes its frontmatter against the strict schema.
// A document without frontmatter fails with apperr.ErrMissingFrontmatter.
func LoadFile(path string) (*Frontmatter, error) {
	raw, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("frontmatter: %s: %w", path, apperr.ErrMissingFrontmatter)
	}
	return Decode(raw)
}
