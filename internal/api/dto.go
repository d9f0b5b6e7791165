package api

import (
	"github.com/dagster-io/skills/internal/apperr"
	"github.com/dagster-io/skills/internal/models"
	"github.com/dagster-io/skills/internal/skillservice"
)

// SkillItem is one configured skill.
type SkillItem struct {
	Name  string `json:"name" example:"dagster-expert" validate:"required"`
	Root  string `json:"root" example:"/repo/skills/dagster-expert/skills/dagster-expert" validate:"required"`
	Entry string `json:"entry" example:"SKILL.md" validate:"required"`
}

// SkillListResponse wraps the configured skills.
type SkillListResponse struct {
	Skills []SkillItem `json:"skills" validate:"required"`
}

// IssuesResponse lists every frontmatter problem of a skill.
type IssuesResponse struct {
	Skill  string        `json:"skill" example:"dagster-expert" validate:"required"`
	Valid  bool          `json:"valid" validate:"required"`
	Issues apperr.Issues `json:"issues" validate:"required"`
}

// DriftResponse reports stale generated regions.
type DriftResponse struct {
	*skillservice.DriftResult
	InSync bool `json:"in_sync" validate:"required"`
}

// GenerateResponse is the result of a write pass (aliased from the domain layer).
type GenerateResponse = skillservice.GenerateResult

// ReportResponse summarizes the link check of a skill.
type ReportResponse struct {
	Skill      string        `json:"skill" example:"dagster-expert" validate:"required"`
	Links      int           `json:"links" example:"42" validate:"required"`
	Files      int           `json:"files" example:"17" validate:"required"`
	Orphans    []string      `json:"orphans" validate:"required"`
	Issues     apperr.Issues `json:"issues" validate:"required"`
	Consistent bool          `json:"consistent" validate:"required"`
}

// DocumentsResponse lists the markdown files of a skill.
type DocumentsResponse struct {
	Skill     string                `json:"skill" validate:"required"`
	Documents []models.DocumentMeta `json:"documents" validate:"required"`
}

// BacklinksResponse lists the links pointing at one file.
type BacklinksResponse struct {
	Skill string        `json:"skill" validate:"required"`
	Path  string        `json:"path" example:"references/assets.md" validate:"required"`
	Links []models.Link `json:"links" validate:"required"`
}

// BlocksResponse lists fenced code blocks.
type BlocksResponse struct {
	Skill  string                   `json:"skill" validate:"required"`
	Blocks []skillservice.CodeBlock `json:"blocks" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchResult `json:"results" validate:"required"`
}
