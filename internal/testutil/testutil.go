// Package testutil provides shared test helpers for building skill trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dagster-io/skills/internal/links"
)

// WriteTree creates a temporary directory holding files (slash-separated
// relative path → content) and returns its canonical path.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := links.Canonical(t.TempDir())
	AddFiles(t, root, files)
	return root
}

// AddFiles writes files under root, creating parent directories.
func AddFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// ReadFile returns the content of root/rel.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Ref returns a reference document with valid frontmatter and body.
func Ref(description string, triggers ...string) string {
	out := "---\ndescription: " + description + "\ntriggers:\n"
	for _, tr := range triggers {
		out += "  - " + tr + "\n"
	}
	return out + "---\n\n# " + description + "\n"
}

// IndexRef returns a deferred index document with markers.
func IndexRef(description string, triggers ...string) string {
	out := "---\ndescription: " + description + "\ntype: index\ntriggers:\n"
	for _, tr := range triggers {
		out += "  - " + tr + "\n"
	}
	return out + "---\n\n# " + description + "\n\n<!-- BEGIN GENERATED INDEX -->\n<!-- END GENERATED INDEX -->\n"
}

// SkillFile returns an entry file with empty markers.
func SkillFile() string {
	return "---\nname: demo\n---\n\n# Demo skill\n\n## References\n\n<!-- BEGIN GENERATED INDEX -->\n<!-- END GENERATED INDEX -->\n\nFooter.\n"
}
