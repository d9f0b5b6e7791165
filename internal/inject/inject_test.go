package inject

import (
	"errors"
	"testing"

	"github.com/dagster-io/skills/internal/apperr"
)

const target = "# Skill\n\nIntro.\n\n<!-- BEGIN GENERATED INDEX -->\nold line\n<!-- END GENERATED INDEX -->\n\nFooter.\n"

func TestInject_ReplacesRegionOnly(t *testing.T) {
	got, err := Inject(target, "- [a](./references/a.md) — A")
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	want := "# Skill\n\nIntro.\n\n<!-- BEGIN GENERATED INDEX -->\n- [a](./references/a.md) — A\n<!-- END GENERATED INDEX -->\n\nFooter.\n"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestInject_RoundTrip(t *testing.T) {
	contents := []string{
		"",
		"- one",
		"- one\n- two",
		"\nleading and trailing blank\n",
	}
	for _, c := range contents {
		out, err := Inject(target, c)
		if err != nil {
			t.Fatalf("Inject(%q): %v", c, err)
		}
		back, err := Extract(out)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if back != c {
			t.Errorf("round trip: got %q, want %q", back, c)
		}
	}
}

func TestInject_Idempotent(t *testing.T) {
	once, err := Inject(target, "- x")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Inject(once, "- x")
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("second injection changed the text:\n%q\n%q", once, twice)
	}
}

func TestInject_MarkerErrors(t *testing.T) {
	cases := map[string]string{
		"none":      "# nothing here\n",
		"no end":    "<!-- BEGIN GENERATED INDEX -->\n",
		"no begin":  "<!-- END GENERATED INDEX -->\n",
		"reversed":  "<!-- END GENERATED INDEX -->\n<!-- BEGIN GENERATED INDEX -->\n",
		"duplicate": "<!-- BEGIN GENERATED INDEX -->\n<!-- END GENERATED INDEX -->\n<!-- BEGIN GENERATED INDEX -->\n",
	}
	for name, text := range cases {
		_, err := Inject(text, "x")
		if !errors.Is(err, apperr.ErrMissingMarkers) {
			t.Errorf("%s: err = %v, want ErrMissingMarkers", name, err)
		}
	}
}

func TestCustomMarkers(t *testing.T) {
	m := Markers{Begin: "<!-- a -->", End: "<!-- b -->"}
	out, err := m.Inject("x <!-- a --><!-- b --> y", "z")
	if err != nil {
		t.Fatal(err)
	}
	if out != "x <!-- a -->\nz\n<!-- b --> y" {
		t.Errorf("out = %q", out)
	}
}
