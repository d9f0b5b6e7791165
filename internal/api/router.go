package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dagster-io/skills/internal/skillservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *skillservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/skills", h.ListSkills)
	r.Route("/skills/{name}", func(r chi.Router) {
		r.Get("/validate", h.Validate)
		r.Get("/drift", h.Drift)
		r.Post("/generate", h.Generate)
		r.Get("/report", h.Report)
		r.Get("/documents", h.Documents)
		r.Get("/backlinks", h.Backlinks)
		r.Get("/blocks", h.Blocks)
	})

	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
