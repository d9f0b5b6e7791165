// Package apperr defines the error kinds reported by validation, generation and link checks.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrMissingFrontmatter = errors.New("missing YAML front matter")
	ErrSchemaViolation    = errors.New("front matter schema violation")
	ErrMalformedYAML      = errors.New("malformed YAML front matter")
	ErrMissingMarkers     = errors.New("generated index markers not found")
	ErrBrokenLink         = errors.New("broken link")
	ErrUnreachable        = errors.New("file is not reachable")
	ErrDrift              = errors.New("generated index is out of date")
)

// Issue is one located problem. Kind is one of the sentinels above.
type Issue struct {
	Kind   error  `json:"-"`
	Path   string `json:"path"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

// Error renders the issue as "path[:line]: reason".
func (i Issue) Error() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", i.Path, i.Line, i.Reason)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Reason)
}

// Unwrap exposes Kind to errors.Is.
func (i Issue) Unwrap() error { return i.Kind }

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrAlreadyExists, "already_exists"},
	{ErrMissingFrontmatter, "missing_frontmatter"},
	{ErrSchemaViolation, "schema_violation"},
	{ErrMalformedYAML, "malformed_yaml"},
	{ErrMissingMarkers, "missing_markers"},
	{ErrBrokenLink, "broken_link"},
	{ErrUnreachable, "unreachable"},
	{ErrDrift, "drift"},
}

// Code returns a stable machine-readable name for the issue kind.
func (i Issue) Code() string {
	for _, c := range codes {
		if errors.Is(i.Kind, c.err) {
			return c.code
		}
	}
	return "error"
}

// MarshalJSON adds the kind code to the encoded issue.
func (i Issue) MarshalJSON() ([]byte, error) {
	type plain Issue
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{Kind: i.Code(), plain: plain(i)})
}

// Issues aggregates a complete list of problems found by one pass.
type Issues []Issue

func (is Issues) Error() string {
	lines := make([]string, len(is))
	for i, issue := range is {
		lines[i] = issue.Error()
	}
	return strings.Join(lines, "\n")
}

// Is reports whether any contained issue matches target.
func (is Issues) Is(target error) bool {
	for _, issue := range is {
		if errors.Is(issue, target) {
			return true
		}
	}
	return false
}

// Err returns nil for an empty list.
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	return is
}
