// Package fence finds fenced code blocks in markdown text.
package fence

import (
	"regexp"
	"strings"
)

var (
	// Fence start/end - allow leading whitespace, support ``` and ~~~.
	startPattern = regexp.MustCompile("^\\s*(```+|~~~+)\\s*(.*?)\\s*$")
	endPattern   = regexp.MustCompile("^\\s*(```+|~~~+)\\s*$")
)

// Block is one fenced code block.
type Block struct {
	Info      []string // info string split on whitespace; Info[0] is the language
	StartLine int      // 1-indexed line of the opening fence
	EndLine   int      // 1-indexed line of the closing fence, 0 if unterminated
	Content   string
}

// Lang returns the language hint, or "".
func (b Block) Lang() string {
	if len(b.Info) == 0 {
		return ""
	}
	return b.Info[0]
}

// HasFlag reports whether flag appears after the language in the info string.
func (b Block) HasFlag(flag string) bool {
	for i, f := range b.Info {
		if i > 0 && f == flag {
			return true
		}
	}
	return false
}

// Mask reports, per line, whether the line belongs to a fenced block
// (fence lines included). An unterminated fence runs to the end.
func Mask(lines []string) []bool {
	mask := make([]bool, len(lines))
	open := ""
	for i, line := range lines {
		if open == "" {
			if m := startPattern.FindStringSubmatch(line); m != nil {
				open = m[1]
				mask[i] = true
			}
			continue
		}
		mask[i] = true
		if m := endPattern.FindStringSubmatch(line); m != nil && closes(open, m[1]) {
			open = ""
		}
	}
	return mask
}

// Blocks returns every fenced block of text in order.
func Blocks(text string) []Block {
	lines := strings.Split(text, "\n")
	var out []Block
	var cur *Block
	var body []string
	open := ""

	for i, line := range lines {
		if cur == nil {
			if m := startPattern.FindStringSubmatch(line); m != nil {
				open = m[1]
				cur = &Block{Info: strings.Fields(m[2]), StartLine: i + 1}
				body = body[:0]
			}
			continue
		}
		if m := endPattern.FindStringSubmatch(line); m != nil && closes(open, m[1]) {
			cur.EndLine = i + 1
			cur.Content = joinBody(body)
			out = append(out, *cur)
			cur = nil
			continue
		}
		body = append(body, line)
	}
	if cur != nil {
		cur.Content = joinBody(body)
		out = append(out, *cur)
	}
	return out
}

// closes reports whether a closing run matches the opening delimiter: same
// character and at least as long.
func closes(open, run string) bool {
	return run[0] == open[0] && len(run) >= len(open)
}

func joinBody(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
