package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/scanstudy/internal/generation"
)

// HandleGenerate is the stateless generation endpoint. Every failure is a 500
// with {"error": msg} so browser clients only have to handle one shape.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Generated", "action", req.Action, "length", len(result))
	h.writeJSON(w, generation.Response{Result: result})
}

func isPrecondition(err error) bool {
	return errors.Is(err, generation.ErrMissingText) ||
		errors.Is(err, generation.ErrMissingQuestion) ||
		errors.Is(err, generation.ErrUnknownAction)
}
