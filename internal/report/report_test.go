package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/reach"
)

func testPrinter() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut, true), &out, &errOut
}

func TestIssues(t *testing.T) {
	p, _, errOut := testPrinter()
	p.Issues("Front matter validation errors:", apperr.Issues{
		{Kind: apperr.ErrSchemaViolation, Path: "references/a.md", Reason: "missing 'triggers' in front matter"},
		{Kind: apperr.ErrBrokenLink, Path: "SKILL.md", Line: 3, Reason: "link './x.md' resolves to /x.md which does not exist"},
	})
	want := "Front matter validation errors:\n" +
		"  - references/a.md: missing 'triggers' in front matter\n" +
		"  - SKILL.md:3: link './x.md' resolves to /x.md which does not exist\n"
	if errOut.String() != want {
		t.Errorf("got\n%s\nwant\n%s", errOut.String(), want)
	}
}

func TestDriftAndUpdated(t *testing.T) {
	p, out, errOut := testPrinter()
	p.Drift("skill/SKILL.md")
	p.Updated([]string{"skill/SKILL.md", "skill/references/guides/INDEX.md"})
	p.Valid()
	if errOut.String() != "DRIFT: skill/SKILL.md is out of date\n" {
		t.Errorf("err = %q", errOut.String())
	}
	want := "Updated skill/SKILL.md\nUpdated skill/references/guides/INDEX.md\nAll front matter is valid.\n"
	if out.String() != want {
		t.Errorf("out = %q", out.String())
	}
}

func TestDiff(t *testing.T) {
	p, _, errOut := testPrinter()
	current := "# Skill\n<!-- BEGIN -->\n- [old](./old.md)\n<!-- END -->\nFooter\n"
	next := "# Skill\n<!-- BEGIN -->\n- [a](./a.md)\n- [b](./b.md)\n<!-- END -->\nFooter\n"
	p.Diff("SKILL.md", current, next)
	want := "--- a/SKILL.md\n+++ b/SKILL.md\n" +
		"@@ -3,1 +3,2 @@\n" +
		"-- [old](./old.md)\n" +
		"+- [a](./a.md)\n" +
		"+- [b](./b.md)\n"
	if errOut.String() != want {
		t.Errorf("got\n%s\nwant\n%s", errOut.String(), want)
	}

	errOut.Reset()
	p.Diff("SKILL.md", current, current)
	if errOut.Len() != 0 {
		t.Errorf("identical texts printed %q", errOut.String())
	}
}

func TestDiffLines_PureInsertion(t *testing.T) {
	h := diffLines("a\nc", "a\nb\nc")
	if h.start != 1 || len(h.removed) != 0 || len(h.added) != 1 || h.added[0] != "b" {
		t.Errorf("hunk = %+v", h)
	}
}

func TestLinks(t *testing.T) {
	p, out, errOut := testPrinter()
	ok := p.Links(&reach.Report{
		Root:  "/s",
		Entry: "/s/SKILL.md",
		Files: []reach.FileStatus{{Path: "/s/SKILL.md", Rel: "SKILL.md", Reachable: true}, {Path: "/s/z.md", Rel: "z.md"}},
	})
	if ok {
		t.Error("expected failure with an orphan")
	}
	if !strings.Contains(errOut.String(), "  - z.md: file is not reachable from SKILL.md") {
		t.Errorf("err = %q", errOut.String())
	}

	errOut.Reset()
	if !p.Links(&reach.Report{Files: []reach.FileStatus{{Rel: "SKILL.md", Reachable: true}}}) {
		t.Error("expected success")
	}
	if !strings.Contains(out.String(), "all 1 files are reachable") {
		t.Errorf("out = %q", out.String())
	}
}

func TestBlocksAndJSON(t *testing.T) {
	p, out, _ := testPrinter()
	p.Blocks([]Block{
		{Label: "references/a.md:4", Lang: "python", Flags: []string{"nocheck"}},
		{Label: "SKILL.md:10", Lang: "python"},
	})
	want := "references/a.md:4 [python] nocheck\nSKILL.md:10 [python]\n2 blocks\n"
	if out.String() != want {
		t.Errorf("got %q", out.String())
	}

	out.Reset()
	if err := p.JSON(map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if out.String() != "{\n  \"n\": 1\n}\n" {
		t.Errorf("json = %q", out.String())
	}
}
