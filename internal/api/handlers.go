package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dagster-io/skills/internal/skillservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *skillservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *skillservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListSkills handles GET /api/skills.
//
//	@Summary		List configured skills
//	@Tags			skills
//	@Produce		json
//	@Success		200	{object}	SkillListResponse
//	@Security		BearerAuth
//	@Router			/skills [get]
func (h *Handler) ListSkills(w http.ResponseWriter, _ *http.Request) {
	skills := h.svc.Skills()
	items := make([]SkillItem, len(skills))
	for i, s := range skills {
		items[i] = SkillItem{Name: s.Name, Root: s.Root, Entry: s.Layout.EntryFile}
	}
	writeJSON(w, http.StatusOK, SkillListResponse{Skills: items})
}

// Validate handles GET /api/skills/{name}/validate.
//
//	@Summary		Validate the frontmatter of every reference document
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Success		200		{object}	IssuesResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/validate [get]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	issues, err := h.svc.Validate(r.Context(), name)
	if err != nil {
		writeError(w, "validate", name, err)
		return
	}
	writeJSON(w, http.StatusOK, IssuesResponse{Skill: name, Valid: len(issues) == 0, Issues: nonNil(issues)})
}

// Drift handles GET /api/skills/{name}/drift.
//
//	@Summary		Report generated regions that are out of date
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Success		200		{object}	DriftResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	IssuesResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/drift [get]
func (h *Handler) Drift(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := h.svc.Drift(r.Context(), name)
	if err != nil {
		writeError(w, "drift", name, err)
		return
	}
	writeJSON(w, http.StatusOK, DriftResponse{DriftResult: res, InSync: res.InSync()})
}

// Generate handles POST /api/skills/{name}/generate.
//
//	@Summary		Regenerate and write the index of a skill
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Success		200		{object}	GenerateResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	IssuesResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := h.svc.Generate(r.Context(), name)
	if err != nil {
		writeError(w, "generate", name, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Report handles GET /api/skills/{name}/report.
//
//	@Summary		Broken links and unreachable files of a skill
//	@Tags			links
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Success		200		{object}	ReportResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rep, err := h.svc.Report(r.Context(), name)
	if err != nil {
		writeError(w, "report", name, err)
		return
	}
	issues := rep.Issues()
	writeJSON(w, http.StatusOK, ReportResponse{
		Skill:      name,
		Links:      len(rep.Links),
		Files:      len(rep.Files),
		Orphans:    nonNil(rep.Orphans()),
		Issues:     nonNil(issues),
		Consistent: len(issues) == 0,
	})
}

// Documents handles GET /api/skills/{name}/documents.
//
//	@Summary		List the markdown files of a skill
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Success		200		{object}	DocumentsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/documents [get]
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	docs, err := h.svc.Documents(r.Context(), name)
	if err != nil {
		writeError(w, "documents", name, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentsResponse{Skill: name, Documents: nonNil(docs)})
}

// Backlinks handles GET /api/skills/{name}/backlinks.
//
//	@Summary		Links pointing at a file of a skill
//	@Tags			links
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Param			path	query		string	true	"Target path relative to the skill root"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	target := r.URL.Query().Get("path")
	if target == "" {
		badRequest(w, "query parameter 'path' is required")
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), name, target)
	if err != nil {
		writeError(w, "backlinks", name, err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Skill: name, Path: target, Links: nonNil(bl)})
}

// Blocks handles GET /api/skills/{name}/blocks.
//
//	@Summary		Fenced code blocks of a skill
//	@Tags			skills
//	@Produce		json
//	@Param			name	path		string	true	"Skill name"
//	@Param			lang	query		string	false	"Language filter"
//	@Success		200		{object}	BlocksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{name}/blocks [get]
func (h *Handler) Blocks(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	blocks, err := h.svc.Blocks(r.Context(), name, r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, "blocks", name, err)
		return
	}
	writeJSON(w, http.StatusOK, BlocksResponse{Skill: name, Blocks: nonNil(blocks)})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across reference documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", "", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
