package links

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtract_FiltersRemoteAndAnchors(t *testing.T) {
	root := Canonical(t.TempDir())
	src := filepath.Join(root, "SKILL.md")
	content := "See [x](references/x.md) and [web](https://example.com).\n" +
		"[plain](http://example.com) [top](#section)\n" +
		"[a](references/x.md#usage) [b](./y.md)\n"

	got := New("INDEX.md", false).Extract(src, []byte(content))
	if len(got) != 3 {
		t.Fatalf("len(links) = %d, want 3: %+v", len(got), got)
	}
	if got[0].Line != 1 || got[0].Raw != "references/x.md" {
		t.Errorf("first link = %+v", got[0])
	}
	if got[1].Line != 3 || got[1].Raw != "references/x.md#usage" {
		t.Errorf("second link = %+v", got[1])
	}
	if got[1].Resolved != filepath.Join(root, "references", "x.md") {
		t.Errorf("anchor not stripped: %s", got[1].Resolved)
	}
	if got[2].Resolved != filepath.Join(root, "y.md") {
		t.Errorf("relative link = %s", got[2].Resolved)
	}
	for _, l := range got {
		if l.Source != src {
			t.Errorf("source = %s", l.Source)
		}
	}
}

func TestExtract_DirectoryTargets(t *testing.T) {
	root := Canonical(t.TempDir())
	if err := os.MkdirAll(filepath.Join(root, "references", "guides"), 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(root, "SKILL.md")
	content := "[g](references/guides/) [g2](references/guides) [missing](references/nothere/)\n"

	got := New("INDEX.md", false).Extract(src, []byte(content))
	if len(got) != 3 {
		t.Fatalf("len(links) = %d", len(got))
	}
	want := filepath.Join(root, "references", "guides", "INDEX.md")
	if got[0].Resolved != want || got[1].Resolved != want {
		t.Errorf("directory links = %s, %s; want %s", got[0].Resolved, got[1].Resolved, want)
	}
	if got[2].Resolved != filepath.Join(root, "references", "nothere", "INDEX.md") {
		t.Errorf("trailing-slash link = %s", got[2].Resolved)
	}
}

func TestExtract_MultipleLinksPerLine(t *testing.T) {
	got := New("INDEX.md", false).Extract("/skill/a.md", []byte("[one](b.md), [two](c.md), [three](../d.md)"))
	if len(got) != 3 {
		t.Fatalf("len(links) = %d", len(got))
	}
	if got[2].Resolved != filepath.Clean("/d.md") {
		t.Errorf("parent link = %s", got[2].Resolved)
	}
}

func TestExtract_FencedCode(t *testing.T) {
	content := "[real](a.md)\n```python\nx = items[0](arg)\n```\n[after](b.md)\n"
	ignoring := New("INDEX.md", true).Extract("/skill/s.md", []byte(content))
	if len(ignoring) != 2 || ignoring[1].Line != 5 {
		t.Errorf("ignoring fenced: %+v", ignoring)
	}
	keeping := New("INDEX.md", false).Extract("/skill/s.md", []byte(content))
	if len(keeping) != 3 {
		t.Errorf("keeping fenced: %+v", keeping)
	}
}

func TestExtractFile(t *testing.T) {
	root := Canonical(t.TempDir())
	path := filepath.Join(root, "references", "x.md")
	writeFile(t, path, "[y](y.md)\n")
	got, err := New("INDEX.md", true).ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if len(got) != 1 || got[0].Resolved != filepath.Join(root, "references", "y.md") {
		t.Errorf("links = %+v", got)
	}
}

func TestCanonical_ResolvesSymlinkedParent(t *testing.T) {
	root := Canonical(t.TempDir())
	real := filepath.Join(root, "real")
	if err := os.MkdirAll(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "alias")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	got := Canonical(filepath.Join(link, "missing.md"))
	if got != filepath.Join(real, "missing.md") {
		t.Errorf("Canonical = %s", got)
	}
}
