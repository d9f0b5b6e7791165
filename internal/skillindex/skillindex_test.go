package skillindex

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/testutil"
)

func testSkill(t *testing.T, files map[string]string) skill.Skill {
	t.Helper()
	root := testutil.WriteTree(t, files)
	s, err := skill.Open(root, skill.DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func generate(t *testing.T, s skill.Skill) *Result {
	t.Helper()
	res, err := NewGenerator(s, nil).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return res
}

func TestGenerate_FlatFilesSorted(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":        testutil.SkillFile(),
		"references/b.md": testutil.Ref("Bee", "bees", "hives"),
		"references/a.md": testutil.Ref("Ay", "letters"),
	})
	res := generate(t, s)
	want := "- [a](./references/a.md) — Ay *(letters)*\n" +
		"- [b](./references/b.md) — Bee *(bees; hives)*"
	if res.Primary != want {
		t.Errorf("primary =\n%s\nwant\n%s", res.Primary, want)
	}
	if len(res.Deferred) != 0 {
		t.Errorf("deferred = %v", res.Deferred)
	}
}

func TestGenerate_DeferredFanOut(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":                   testutil.SkillFile(),
		"references/top.md":          testutil.Ref("Top", "top"),
		"references/guides/INDEX.md": testutil.IndexRef("Guides", "guides"),
		"references/guides/a.md":     testutil.Ref("Guide A", "a"),
		"references/guides/b.md":     testutil.Ref("Guide B", "b"),
	})
	res := generate(t, s)

	wantPrimary := "- [top](./references/top.md) — Top *(top)*\n" +
		"- [guides](./references/guides/INDEX.md) — Guides *(guides)*"
	if res.Primary != wantPrimary {
		t.Errorf("primary =\n%s\nwant\n%s", res.Primary, wantPrimary)
	}
	if strings.Contains(res.Primary, "a.md") || strings.Contains(res.Primary, "b.md") {
		t.Error("deferred children leaked into the parent listing")
	}

	index := filepath.Join(s.Root, "references", "guides", "INDEX.md")
	got, ok := res.Deferred[index]
	if !ok {
		t.Fatalf("no deferred listing for %s: %v", index, res.DeferredPaths())
	}
	wantChild := "- [a](./a.md) — Guide A *(a)*\n- [b](./b.md) — Guide B *(b)*"
	if got != wantChild {
		t.Errorf("deferred =\n%s\nwant\n%s", got, wantChild)
	}
}

func TestGenerate_NestedDeferred(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":                          testutil.SkillFile(),
		"references/api/INDEX.md":           testutil.IndexRef("API", "api"),
		"references/api/assets/INDEX.md":    testutil.IndexRef("Assets API", "assets"),
		"references/api/assets/decorate.md": testutil.Ref("Decorator", "decorate"),
		"references/api/resources.md":       testutil.Ref("Resources", "resources"),
	})
	res := generate(t, s)
	if res.Primary != "- [api](./references/api/INDEX.md) — API *(api)*" {
		t.Errorf("primary = %q", res.Primary)
	}
	apiIndex := filepath.Join(s.Root, "references", "api", "INDEX.md")
	assetsIndex := filepath.Join(s.Root, "references", "api", "assets", "INDEX.md")
	if got := res.Deferred[apiIndex]; got != "- [resources](./resources.md) — Resources *(resources)*\n- [assets](./assets/INDEX.md) — Assets API *(assets)*" {
		t.Errorf("api listing = %q", got)
	}
	if got := res.Deferred[assetsIndex]; got != "- [decorate](./decorate.md) — Decorator *(decorate)*" {
		t.Errorf("assets listing = %q", got)
	}
	paths := res.DeferredPaths()
	if len(paths) != 2 || paths[0] != apiIndex {
		t.Errorf("deferred paths = %v", paths)
	}
}

func TestGenerate_FlattensDirectoryWithoutIndex(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":                  testutil.SkillFile(),
		"references/misc/x.md":      testutil.Ref("X", "x"),
		"references/bare/INDEX.md":  "# no frontmatter\n",
		"references/bare/y.md":      testutil.Ref("Y", "y"),
		"references/bare/deep/z.md": testutil.Ref("Z", "z"),
	})
	res := generate(t, s)
	want := "- [bare/y](./references/bare/y.md) — Y *(y)*\n" +
		"- [bare/deep/z](./references/bare/deep/z.md) — Z *(z)*\n" +
		"- [misc/x](./references/misc/x.md) — X *(x)*"
	if res.Primary != want {
		t.Errorf("primary =\n%s\nwant\n%s", res.Primary, want)
	}
}

func TestGenerate_LeafGroup(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":                     testutil.SkillFile(),
		"references/cli/INDEX.md":      testutil.Ref("CLI", "cli"),
		"references/cli/dev.md":        testutil.Ref("dev", "dev"),
		"references/cli/notes.txt":     "not markdown",
		"references/cli/sub/hidden.md": testutil.Ref("Hidden", "hidden"),
	})
	res := generate(t, s)
	want := "- [cli](./references/cli/INDEX.md) — CLI *(cli)*\n" +
		"- [cli/dev](./references/cli/dev.md) — dev *(dev)*"
	if res.Primary != want {
		t.Errorf("primary =\n%s\nwant\n%s", res.Primary, want)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":                   testutil.SkillFile(),
		"references/a.md":            testutil.Ref("A", "a"),
		"references/guides/INDEX.md": testutil.IndexRef("Guides", "g"),
		"references/guides/b.md":     testutil.Ref("B", "b"),
	})
	first := generate(t, s)
	second := generate(t, s)
	if first.Primary != second.Primary {
		t.Error("primary listing differs between runs")
	}
	for p, c := range first.Deferred {
		if second.Deferred[p] != c {
			t.Errorf("deferred %s differs between runs", p)
		}
	}
}

func TestGenerate_MissingReferencesDir(t *testing.T) {
	s := testSkill(t, map[string]string{"SKILL.md": testutil.SkillFile()})
	_, err := NewGenerator(s, nil).Generate()
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestValidateTree_CollectsAllIssues(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":                 testutil.SkillFile(),
		"references/ok.md":         testutil.Ref("OK", "ok"),
		"references/bad.md":        "---\ndescription: Bad\nfoo: bar\n---\n",
		"references/plain.md":      "# no frontmatter\n",
		"references/broken.md":     "---\ndescription: [unclosed\n---\n",
		"references/dir/INDEX.md":  "# undocumented index\n",
		"references/dir2/INDEX.md": "---\ntype: index\n---\n",
	})
	issues, err := ValidateTree(s)
	if err != nil {
		t.Fatalf("ValidateTree: %v", err)
	}
	got := make([]string, len(issues))
	for i, is := range issues {
		got[i] = is.Error()
	}
	want := []string{
		"references/bad.md: unknown field 'foo' in front matter",
		"references/bad.md: missing 'triggers' in front matter",
		"references/dir2/INDEX.md: missing 'description' in front matter",
		"references/dir2/INDEX.md: missing 'triggers' in front matter",
		"references/plain.md: missing YAML front matter",
	}
	var filtered []string
	for _, g := range got {
		if strings.HasPrefix(g, "references/broken.md") {
			continue
		}
		filtered = append(filtered, g)
	}
	if strings.Join(filtered, "\n") != strings.Join(want, "\n") {
		t.Errorf("issues =\n%s\nwant\n%s", strings.Join(filtered, "\n"), strings.Join(want, "\n"))
	}
	if !errors.Is(issues, apperr.ErrMalformedYAML) {
		t.Error("expected a malformed YAML issue for broken.md")
	}
	if !errors.Is(issues, apperr.ErrMissingFrontmatter) || !errors.Is(issues, apperr.ErrSchemaViolation) {
		t.Error("expected missing-frontmatter and schema issues")
	}
}

func TestValidateTree_Valid(t *testing.T) {
	s := testSkill(t, map[string]string{
		"SKILL.md":                   testutil.SkillFile(),
		"references/a.md":            testutil.Ref("A", "a"),
		"references/guides/INDEX.md": testutil.IndexRef("Guides", "g"),
	})
	issues, err := ValidateTree(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 {
		t.Errorf("issues = %v", issues)
	}
}
