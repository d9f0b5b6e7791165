package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dagster-io/skills/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" example:"not found" validate:"required"`
	Code  string `json:"code,omitempty" example:"not_found"`
}

// writeError maps service errors onto HTTP statuses. Validation failures
// carry their complete issue list.
func writeError(w http.ResponseWriter, op, name string, err error) {
	var issues apperr.Issues
	switch {
	case errors.As(err, &issues):
		writeJSON(w, http.StatusUnprocessableEntity, IssuesResponse{Skill: name, Valid: false, Issues: issues})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: "not found", Code: "not_found"})
	default:
		slog.Error(op+" failed", slog.String("skill", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errResponse{Error: msg, Code: "bad_request"})
}
