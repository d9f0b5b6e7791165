// Package inject replaces the generated region of a file between two marker lines.
package inject

import (
	"fmt"
	"strings"

	"github.com/dagster-io/skills/internal/apperr"
)

const (
	DefaultBegin = "<!-- BEGIN GENERATED INDEX -->"
	DefaultEnd   = "<!-- END GENERATED INDEX -->"
)

// Markers delimit the generated region.
type Markers struct {
	Begin string `yaml:"begin_marker"`
	End   string `yaml:"end_marker"`
}

// DefaultMarkers returns the standard generated-index markers.
func DefaultMarkers() Markers {
	return Markers{Begin: DefaultBegin, End: DefaultEnd}
}

// MarkerError reports a target whose markers are absent, duplicated or out of order.
type MarkerError struct {
	Path   string
	Reason string
}

func (e *MarkerError) Error() string {
	if e.Path == "" {
		return "inject: " + e.Reason
	}
	return fmt.Sprintf("inject: %s: %s", e.Path, e.Reason)
}

func (e *MarkerError) Unwrap() error { return apperr.ErrMissingMarkers }

// locate returns the offset just past Begin and the offset of End.
func (m Markers) locate(text string) (int, int, error) {
	switch nb, ne := strings.Count(text, m.Begin), strings.Count(text, m.End); {
	case nb == 0 && ne == 0:
		return 0, 0, &MarkerError{Reason: "markers not found"}
	case nb == 0:
		return 0, 0, &MarkerError{Reason: fmt.Sprintf("marker %q not found", m.Begin)}
	case ne == 0:
		return 0, 0, &MarkerError{Reason: fmt.Sprintf("marker %q not found", m.End)}
	case nb > 1 || ne > 1:
		return 0, 0, &MarkerError{Reason: "markers must appear exactly once"}
	}
	begin := strings.Index(text, m.Begin) + len(m.Begin)
	end := strings.Index(text, m.End)
	if end < begin {
		return 0, 0, &MarkerError{Reason: "end marker precedes begin marker"}
	}
	return begin, end, nil
}

// Inject splices content between the markers of text, keeping everything
// outside them byte for byte.
func (m Markers) Inject(text, content string) (string, error) {
	begin, end, err := m.locate(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(text) + len(content) + 2)
	b.WriteString(text[:begin])
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(text[end:])
	return b.String(), nil
}

// Extract returns the content a previous Inject placed between the markers.
func (m Markers) Extract(text string) (string, error) {
	begin, end, err := m.locate(text)
	if err != nil {
		return "", err
	}
	region := text[begin:end]
	region = strings.TrimPrefix(region, "\n")
	region = strings.TrimSuffix(region, "\n")
	return region, nil
}

// Inject uses the default markers.
func Inject(text, content string) (string, error) {
	return DefaultMarkers().Inject(text, content)
}

// Extract uses the default markers.
func Extract(text string) (string, error) {
	return DefaultMarkers().Extract(text)
}
