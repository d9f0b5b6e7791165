// Package skillservice coordinates validation, generation, drift checks and
// link reports across the configured skills. It is the single entry point the
// CLI, the HTTP API, the MCP server and the watcher share.
package skillservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/fence"
	"github.com/dagster-io/skills/internal/frontmatter"
	"github.com/dagster-io/skills/internal/graph"
	"github.com/dagster-io/skills/internal/links"
	"github.com/dagster-io/skills/internal/models"
	"github.com/dagster-io/skills/internal/reach"
	"github.com/dagster-io/skills/internal/regen"
	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/skillindex"
	"github.com/dagster-io/skills/internal/sse"
	"github.com/dagster-io/skills/internal/storage"
)

// Publisher receives the outcome of watcher-driven regeneration.
type Publisher interface {
	PublishSkillEvent(kind, skill string, paths []string)
}

// Options configures a Service.
type Options struct {
	IgnoreFencedCode bool
	Ignore           []string
	Logger           *slog.Logger
}

// Service coordinates skills, the regeneration planner, the reachability
// analyzer and the optional link graph store.
type Service struct {
	skills   map[string]skill.Skill
	names    []string
	analyzer *reach.Analyzer
	db       graph.Store
	pub      Publisher
	logger   *slog.Logger

	// mu serializes writes to the skill trees.
	mu sync.Mutex
}

// New creates a service over skills. db may be nil, in which case the graph
// queries fail with apperr.ErrNotFound.
func New(skills []skill.Skill, db graph.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		skills: make(map[string]skill.Skill, len(skills)),
		db:     db,
		logger: logger,
	}
	indexFile := skill.DefaultLayout().IndexFile
	if len(skills) > 0 {
		indexFile = skills[0].Layout.IndexFile
	}
	s.analyzer = reach.NewAnalyzer(links.New(indexFile, opts.IgnoreFencedCode), opts.Ignore)
	for _, sk := range skills {
		s.skills[sk.Name] = sk
		s.names = append(s.names, sk.Name)
	}
	sort.Strings(s.names)
	return s
}

// SetPublisher attaches the event sink used by HandleChanges.
func (s *Service) SetPublisher(p Publisher) { s.pub = p }

// Analyzer returns the reachability analyzer shared by all skills.
func (s *Service) Analyzer() *reach.Analyzer { return s.analyzer }

// Skills returns every configured skill in name order.
func (s *Service) Skills() []skill.Skill {
	out := make([]skill.Skill, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.skills[n])
	}
	return out
}

// Skill returns the named skill.
func (s *Service) Skill(name string) (skill.Skill, error) {
	sk, ok := s.skills[name]
	if !ok {
		return skill.Skill{}, fmt.Errorf("skillservice: skill %q: %w", name, apperr.ErrNotFound)
	}
	return sk, nil
}

// Validate returns every frontmatter problem of the named skill.
func (s *Service) Validate(_ context.Context, name string) (apperr.Issues, error) {
	sk, err := s.Skill(name)
	if err != nil {
		return nil, err
	}
	return skillindex.ValidateTree(sk)
}

// Plan computes, without writing, the regeneration plan of the named skill.
func (s *Service) Plan(_ context.Context, name string) (*regen.Plan, error) {
	sk, err := s.Skill(name)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFS(sk.Root)
	if err != nil {
		return nil, err
	}
	return regen.Build(sk, store, s.logger.With(slog.String("skill", name)))
}

// DriftResult lists the targets of a skill that are out of date.
type DriftResult struct {
	Skill   string        `json:"skill"`
	Stale   []string      `json:"stale"`
	Skipped apperr.Issues `json:"skipped,omitempty"`
}

// InSync reports whether every target is current.
func (d *DriftResult) InSync() bool { return len(d.Stale) == 0 && len(d.Skipped) == 0 }

// Drift checks the named skill for stale generated regions without writing.
// Stale targets are also published as an index.drift event.
func (s *Service) Drift(ctx context.Context, name string) (*DriftResult, error) {
	plan, err := s.Plan(ctx, name)
	if err != nil {
		return nil, err
	}
	res := &DriftResult{Skill: name, Stale: []string{}, Skipped: plan.Skipped}
	for _, u := range plan.Drift() {
		res.Stale = append(res.Stale, u.Path)
	}
	if len(res.Stale) > 0 {
		s.publish(sse.KindDrift, name, res.Stale)
	}
	return res, nil
}

// GenerateResult summarizes one write pass.
type GenerateResult struct {
	Skill   string        `json:"skill"`
	Written []string      `json:"written"`
	Skipped apperr.Issues `json:"skipped,omitempty"`
}

// Generate regenerates the named skill and writes every changed target.
func (s *Service) Generate(ctx context.Context, name string) (*GenerateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk, err := s.Skill(name)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFS(sk.Root)
	if err != nil {
		return nil, err
	}
	plan, err := regen.Build(sk, store, s.logger.With(slog.String("skill", name)))
	if err != nil {
		return nil, err
	}
	written, err := plan.Apply(store)
	res := &GenerateResult{Skill: name, Written: []string{}, Skipped: plan.Skipped}
	for _, u := range written {
		res.Written = append(res.Written, u.Path)
		s.logger.Info("skillservice: updated", slog.String("skill", name), slog.String("path", u.Path))
	}
	if err != nil {
		return res, err
	}
	if s.db != nil {
		if _, err := graph.Sync(s.db, sk, store, s.analyzer, s.logger); err != nil {
			s.logger.Warn("skillservice: graph sync failed", slog.String("skill", name), slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// CreateReference writes a new reference document at rel, relative to the
// references directory, then regenerates the skill. The frontmatter is
// validated before anything is written.
func (s *Service) CreateReference(ctx context.Context, name, rel string, fm frontmatter.Frontmatter, body string) (*GenerateResult, error) {
	sk, err := s.Skill(name)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(rel) != ".md" {
		return nil, fmt.Errorf("skillservice: reference path must end with .md: %s", rel)
	}
	data, err := frontmatter.Render(&fm, body)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFS(sk.Root)
	if err != nil {
		return nil, err
	}
	target := path.Join(filepath.ToSlash(sk.Layout.ReferencesDir), filepath.ToSlash(rel))
	if !strings.HasPrefix(target, filepath.ToSlash(sk.Layout.ReferencesDir)+"/") {
		return nil, fmt.Errorf("skillservice: path escapes the references directory: %s", rel)
	}

	s.mu.Lock()
	if store.Exists(target) {
		s.mu.Unlock()
		return nil, fmt.Errorf("skillservice: %s: %w", target, apperr.ErrAlreadyExists)
	}
	err = store.Write(target, data)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.logger.Info("skillservice: created reference", slog.String("skill", name), slog.String("path", target))
	return s.Generate(ctx, name)
}

// Report builds the link and reachability report of the named skill.
func (s *Service) Report(_ context.Context, name string) (*reach.Report, error) {
	sk, err := s.Skill(name)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Report(sk.Root, sk.Entry())
}

// Documents lists the markdown files of the named skill.
func (s *Service) Documents(_ context.Context, name string) ([]models.DocumentMeta, error) {
	sk, err := s.Skill(name)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFS(sk.Root)
	if err != nil {
		return nil, err
	}
	return store.List("")
}

// Sync refreshes the link graph rows of every skill.
func (s *Service) Sync(_ context.Context) error {
	if s.db == nil {
		return nil
	}
	var errs []error
	for _, sk := range s.Skills() {
		store, err := storage.NewFS(sk.Root)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := graph.Sync(s.db, sk, store, s.analyzer, s.logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Backlinks returns the links of the named skill that point at path, which
// is relative to the skill root.
func (s *Service) Backlinks(_ context.Context, name, path string) ([]models.Link, error) {
	if _, err := s.Skill(name); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, fmt.Errorf("skillservice: link graph disabled: %w", apperr.ErrNotFound)
	}
	return s.db.Backlinks(name, filepath.ToSlash(filepath.Clean(path)))
}

// Search runs a full-text search over every indexed reference.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("skillservice: link graph disabled: %w", apperr.ErrNotFound)
	}
	return s.db.Search(query, limit)
}

// CodeBlock is one fenced code block found in a skill's markdown.
type CodeBlock struct {
	Skill     string   `json:"skill"`
	Path      string   `json:"path"`
	StartLine int      `json:"start_line"`
	Lang      string   `json:"lang"`
	Flags     []string `json:"flags,omitempty"`
	Content   string   `json:"content"`
}

// Blocks collects the fenced code blocks of every markdown file of the named
// skill, optionally restricted to one language.
func (s *Service) Blocks(_ context.Context, name, lang string) ([]CodeBlock, error) {
	sk, err := s.Skill(name)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFS(sk.Root)
	if err != nil {
		return nil, err
	}
	metas, err := store.List("")
	if err != nil {
		return nil, err
	}
	var out []CodeBlock
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			return nil, err
		}
		for _, b := range fence.Blocks(string(data)) {
			if lang != "" && b.Lang() != lang {
				continue
			}
			cb := CodeBlock{Skill: name, Path: m.Path, StartLine: b.StartLine, Lang: b.Lang(), Content: b.Content}
			if len(b.Info) > 1 {
				cb.Flags = b.Info[1:]
			}
			out = append(out, cb)
		}
	}
	return out, nil
}

// HandleChanges regenerates every skill touched by paths and publishes the
// outcome. It is the watcher callback.
func (s *Service) HandleChanges(paths []string) {
	ctx := context.Background()
	for _, name := range s.owners(paths) {
		res, err := s.Generate(ctx, name)
		var issues apperr.Issues
		switch {
		case errors.As(err, &issues):
			s.logger.Warn("skillservice: validation failed", slog.String("skill", name), slog.Int("issues", len(issues)))
			s.publish(sse.KindInvalid, name, issuePaths(issues))
		case err != nil:
			s.logger.Error("skillservice: regenerate failed", slog.String("skill", name), slog.String("error", err.Error()))
		default:
			if len(res.Skipped) > 0 {
				s.publish(sse.KindInvalid, name, issuePaths(res.Skipped))
			}
			if len(res.Written) > 0 {
				s.publish(sse.KindUpdated, name, res.Written)
			}
		}
	}
}

// owners maps changed paths to the sorted names of the skills containing them.
func (s *Service) owners(paths []string) []string {
	hit := make(map[string]bool)
	for _, p := range paths {
		cp := links.Canonical(p)
		for name, sk := range s.skills {
			if cp == sk.Root || strings.HasPrefix(cp, sk.Root+string(os.PathSeparator)) {
				hit[name] = true
			}
		}
	}
	out := make([]string, 0, len(hit))
	for n := range hit {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s *Service) publish(kind, name string, paths []string) {
	if s.pub != nil {
		s.pub.PublishSkillEvent(kind, name, paths)
	}
}

func issuePaths(issues apperr.Issues) []string {
	seen := make(map[string]bool)
	var out []string
	for _, is := range issues {
		if !seen[is.Path] {
			seen[is.Path] = true
			out = append(out, is.Path)
		}
	}
	return out
}
