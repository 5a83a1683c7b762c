// internal/handler/activity_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/unclebandit/leadflow-backend/internal/repository"
)

// ActivityHandler serves the read-only audit trail.
type ActivityHandler struct {
	Repo repository.ActivityRepositoryInterface
}

func NewActivityHandler(repo repository.ActivityRepositoryInterface) *ActivityHandler {
	return &ActivityHandler{Repo: repo}
}

// ListActivityHandler returns the most recent activity entries for a
// campaign, newest first.
func (h *ActivityHandler) ListActivityHandler(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 500 {
		limit = 500
	}

	entries, err := h.Repo.List(id, limit)
	if err != nil {
		http.Error(w, "failed to fetch activity: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": entries,
	})
}
