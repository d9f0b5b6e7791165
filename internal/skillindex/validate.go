package skillindex

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/frontmatter"
	"github.com/dagster-io/skills/internal/links"
	"github.com/dagster-io/skills/internal/skill"
)

// ValidateTree checks the frontmatter of every markdown file under the
// skill's references directory and returns every problem found. Index files
// may omit frontmatter; when present it must satisfy the same schema.
// Issue paths are relative to the skill root.
func ValidateTree(s skill.Skill) (apperr.Issues, error) {
	refs := links.Canonical(s.RefsDir())
	if !isDir(refs) {
		return nil, fmt.Errorf("skillindex: references directory not found at %s: %w", refs, apperr.ErrNotFound)
	}
	base := links.Canonical(s.Root)

	var issues apperr.Issues
	err := filepath.WalkDir(refs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || filepath.Ext(p) != markdownExt {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		issues = append(issues, validateFile(p, filepath.ToSlash(rel), d.Name() == s.Layout.IndexFile)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("skillindex: walk %s: %w", refs, err)
	}
	return issues, nil
}

func validateFile(path, rel string, isIndex bool) apperr.Issues {
	raw, err := frontmatter.ParseFile(path)
	if err != nil {
		var pe *frontmatter.ParseError
		if errors.As(err, &pe) {
			return apperr.Issues{{Kind: apperr.ErrMalformedYAML, Path: rel, Reason: fmt.Sprintf("invalid YAML front matter: %v", pe.Err)}}
		}
		return apperr.Issues{{Kind: apperr.ErrMalformedYAML, Path: rel, Reason: err.Error()}}
	}
	if raw == nil {
		if isIndex {
			return nil
		}
		return apperr.Issues{{Kind: apperr.ErrMissingFrontmatter, Path: rel, Reason: "missing YAML front matter"}}
	}
	var out apperr.Issues
	for _, v := range frontmatter.Validate(raw) {
		out = append(out, apperr.Issue{Kind: apperr.ErrSchemaViolation, Path: rel, Reason: v.Message})
	}
	return out
}
