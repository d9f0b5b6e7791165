// Package report prints human-readable command results to a terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/reach"
)

// Printer writes results to Out and problems to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer

	red   *color.Color
	green *color.Color
	cyan  *color.Color
	bold  *color.Color
}

// New returns a Printer. noColor disables escape sequences regardless of the
// terminal.
func New(out, errOut io.Writer, noColor bool) *Printer {
	p := &Printer{
		Out:   out,
		Err:   errOut,
		red:   color.New(color.FgRed),
		green: color.New(color.FgGreen),
		cyan:  color.New(color.FgCyan),
		bold:  color.New(color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.red, p.green, p.cyan, p.bold} {
			c.DisableColor()
		}
	}
	return p
}

// Issues prints a titled list of problems, one per line.
func (p *Printer) Issues(title string, issues apperr.Issues) {
	p.bold.Fprintln(p.Err, title)
	for _, is := range issues {
		fmt.Fprintf(p.Err, "  - %s\n", is.Error())
	}
}

// Valid confirms a clean frontmatter pass.
func (p *Printer) Valid() {
	p.green.Fprintln(p.Out, "All front matter is valid.")
}

// Updated lists written files.
func (p *Printer) Updated(paths []string) {
	for _, path := range paths {
		fmt.Fprintf(p.Out, "Updated %s\n", path)
	}
}

// Skipped reports targets that could not be regenerated.
func (p *Printer) Skipped(issues apperr.Issues) {
	for _, is := range issues {
		p.red.Fprint(p.Err, "ERROR: ")
		fmt.Fprintln(p.Err, is.Error())
	}
}

// Drift reports one stale file.
func (p *Printer) Drift(path string) {
	p.red.Fprint(p.Err, "DRIFT: ")
	fmt.Fprintf(p.Err, "%s is out of date\n", path)
}

// InSync confirms that no generated region is stale.
func (p *Printer) InSync() {
	p.green.Fprintln(p.Out, "All generated indices are up to date.")
}

// Hint prints a follow-up suggestion.
func (p *Printer) Hint(msg string) {
	p.cyan.Fprintln(p.Err, msg)
}

// Diff prints the changed lines between current and next.
func (p *Printer) Diff(path, current, next string) {
	if current == next {
		return
	}
	fmt.Fprintf(p.Err, "--- a/%s\n", path)
	fmt.Fprintf(p.Err, "+++ b/%s\n", path)
	h := diffLines(current, next)
	p.cyan.Fprintf(p.Err, "@@ -%d,%d +%d,%d @@\n", h.start+1, len(h.removed), h.start+1, len(h.added))
	for _, l := range h.removed {
		p.red.Fprintf(p.Err, "-%s\n", l)
	}
	for _, l := range h.added {
		p.green.Fprintf(p.Err, "+%s\n", l)
	}
}

// hunk is the single changed span between two texts.
type hunk struct {
	start   int
	removed []string
	added   []string
}

// diffLines trims the common leading and trailing lines of a and b. A
// generated region changes as one contiguous block, so one hunk suffices.
func diffLines(a, b string) hunk {
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")
	pre := 0
	for pre < len(al) && pre < len(bl) && al[pre] == bl[pre] {
		pre++
	}
	suf := 0
	for suf < len(al)-pre && suf < len(bl)-pre && al[len(al)-1-suf] == bl[len(bl)-1-suf] {
		suf++
	}
	return hunk{
		start:   pre,
		removed: al[pre : len(al)-suf],
		added:   bl[pre : len(bl)-suf],
	}
}

// Links prints broken links and unreachable files, or a confirmation.
func (p *Printer) Links(rep *reach.Report) bool {
	issues := rep.Issues()
	if len(issues) == 0 {
		p.green.Fprintf(p.Out, "%d links resolve and all %d files are reachable.\n", len(rep.Links), len(rep.Files))
		return true
	}
	p.Issues("Link errors:", issues)
	return false
}

// JSON writes v indented to Out.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// Block is one code block listing line.
type Block struct {
	Label string
	Lang  string
	Flags []string
}

// Blocks lists code blocks as "label [lang] flags".
func (p *Printer) Blocks(blocks []Block) {
	for _, b := range blocks {
		p.bold.Fprint(p.Out, b.Label)
		fmt.Fprintf(p.Out, " [%s]", b.Lang)
		if len(b.Flags) > 0 {
			fmt.Fprintf(p.Out, " %s", strings.Join(b.Flags, " "))
		}
		fmt.Fprintln(p.Out)
	}
	fmt.Fprintf(p.Out, "%d blocks\n", len(blocks))
}
