package frontmatter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/dagster-io/skills/internal/apperr"
)

// Frontmatter is the strict schema every reference document must satisfy.
type Frontmatter struct {
	Description string   `yaml:"description" json:"description"`
	Triggers    []string `yaml:"triggers" json:"triggers"`
	Type        string   `yaml:"type,omitempty" json:"type"`
}

// IsIndex reports whether the document declares itself a deferred index.
func (f *Frontmatter) IsIndex() bool {
	return f.Type == TypeIndex
}

// Validate applies the field rules. Shape checks (types, unknown keys,
// presence of description) are done by Validate(raw) before a Frontmatter
// value exists. Empty strings are accepted.
func (f *Frontmatter) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Triggers, validation.Required.Error("must be a non-empty list")),
		validation.Field(&f.Type, validation.In(TypeIndex).Error(`must be "index" when set`)),
	)
}

// schemaFields lists the allowed keys in reporting order.
var schemaFields = []string{"description", "triggers", "type"}

// Violation is one schema problem of one document.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string { return v.Message }

// SchemaError carries every violation found in one document.
type SchemaError struct {
	Violations []Violation
}

func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "frontmatter: " + strings.Join(msgs, "; ")
}

func (e *SchemaError) Unwrap() error { return apperr.ErrSchemaViolation }

// Decode converts raw into a Frontmatter, failing with a *SchemaError that
// lists every violation.
func Decode(raw map[string]any) (*Frontmatter, error) {
	fm, violations := decode(raw)
	if len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}
	return fm, nil
}

// Validate returns every violation of raw against the strict schema.
func Validate(raw map[string]any) []Violation {
	_, violations := decode(raw)
	return violations
}

func decode(raw map[string]any) (*Frontmatter, []Violation) {
	var out []Violation
	fm := &Frontmatter{}
	shapeFailed := make(map[string]bool)

	var unknown []string
	for key := range raw {
		if !isSchemaField(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		out = append(out, Violation{Field: key, Message: fmt.Sprintf("unknown field '%s' in front matter", key)})
	}

	if v, ok := raw["description"]; !ok {
		shapeFailed["description"] = true
		out = append(out, Violation{Field: "description", Message: "missing 'description' in front matter"})
	} else if s, ok := v.(string); ok {
		fm.Description = s
	} else {
		shapeFailed["description"] = true
		out = append(out, Violation{Field: "description", Message: "'description' must be a string"})
	}

	if v, ok := raw["triggers"]; !ok {
		shapeFailed["triggers"] = true
		out = append(out, Violation{Field: "triggers", Message: "missing 'triggers' in front matter"})
	} else if items, ok := v.([]any); ok {
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				shapeFailed["triggers"] = true
				out = append(out, Violation{
					Field:   "triggers",
					Message: fmt.Sprintf("'triggers[%d]' must be a string", i),
				})
				continue
			}
			fm.Triggers = append(fm.Triggers, s)
		}
	} else {
		shapeFailed["triggers"] = true
		out = append(out, Violation{Field: "triggers", Message: "'triggers' must be a non-empty list"})
	}

	if v, ok := raw["type"]; ok && v != nil {
		if s, ok := v.(string); ok {
			fm.Type = s
		} else {
			shapeFailed["type"] = true
			out = append(out, Violation{Field: "type", Message: `'type' must be "index" when set`})
		}
	}

	out = append(out, ruleViolations(fm.Validate(), shapeFailed)...)
	return fm, out
}

// ruleViolations flattens ozzo-validation errors in schema order, skipping
// fields whose shape check already failed.
func ruleViolations(err error, skip map[string]bool) []Violation {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []Violation{{Message: err.Error()}}
	}
	var out []Violation
	for _, field := range schemaFields {
		ferr, ok := errs[field]
		if !ok || skip[field] {
			continue
		}
		var nested validation.Errors
		if errors.As(ferr, &nested) {
			keys := make([]string, 0, len(nested))
			for k := range nested {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool {
				a, _ := strconv.Atoi(keys[i])
				b, _ := strconv.Atoi(keys[j])
				return a < b
			})
			for _, k := range keys {
				out = append(out, Violation{
					Field:   field,
					Message: fmt.Sprintf("'%s[%s]' %s", field, k, nested[k].Error()),
				})
			}
			continue
		}
		out = append(out, Violation{Field: field, Message: fmt.Sprintf("'%s' %s", field, ferr.Error())})
	}
	return out
}

func isSchemaField(key string) bool {
	for _, f := range schemaFields {
		if f == key {
			return true
		}
	}
	return false
}

// Render validates fm and returns a document made of its frontmatter block
// followed by body.
func Render(fm *Frontmatter, body string) ([]byte, error) {
	if _, violations := decode(fm.raw()); len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}
	block, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var b strings.Builder
	b.Write(openFence)
	b.Write(block)
	b.WriteString("---\n")
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

// raw converts fm back into the generic form Validate(raw) checks.
func (f *Frontmatter) raw() map[string]any {
	triggers := make([]any, len(f.Triggers))
	for i, t := range f.Triggers {
		triggers[i] = t
	}
	out := map[string]any{"description": f.Description, "triggers": triggers}
	if f.Type != "" {
		out["type"] = f.Type
	}
	return out
}
