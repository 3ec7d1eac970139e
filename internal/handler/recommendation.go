// Package handler is the HTTP layer: it decodes requests, calls a service
// and encodes the result. No business rule lives here.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/auth"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// RecommendationHandler serves /api/recommendations.
type RecommendationHandler struct {
	svc    *service.RecommendationService
	logger *slog.Logger
}

func NewRecommendationHandler(svc *service.RecommendationService, logger *slog.Logger) *RecommendationHandler {
	return &RecommendationHandler{svc: svc, logger: logger}
}

// CreateRecommendationRequest is the body of POST /api/recommendations.
type CreateRecommendationRequest struct {
	Title string `json:"title"`
	Genre string `json:"genre"`
	Blurb string `json:"blurb"`
	Link  string `json:"link,omitempty"`
}

type createRecommendationResponse struct {
	ID string `json:"id"`
}

// HandleList returns the public feed.
//
// HTTP: GET /api/recommendations?genre=sci-fi
// Auth: optional
func (h *RecommendationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	genre, err := service.ParseGenre(r.URL.Query().Get("genre"))
	if err != nil {
		writeError(w, err)
		return
	}

	sub, _ := auth.SubjectFromContext(r.Context())
	views, err := h.svc.List(r.Context(), sub, genre)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleListMine returns the caller's recommendations (all of them for
// admins).
//
// HTTP: GET /api/recommendations/mine?genre=sci-fi
// Auth: required
func (h *RecommendationHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	genre, err := service.ParseGenre(r.URL.Query().Get("genre"))
	if err != nil {
		writeError(w, err)
		return
	}

	sub, _ := auth.SubjectFromContext(r.Context())
	views, err := h.svc.ListMine(r.Context(), sub, genre)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleCreate adds a recommendation owned by the caller.
//
// HTTP: POST /api/recommendations
// Body: {"title": "Dune", "genre": "sci-fi", "blurb": "Great book", "link": "https://..."}
// Auth: required
// Response: 201 {"id": "..."}
func (h *RecommendationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRecommendationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("invalid recommendation JSON", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "request body must be a JSON object with title, genre, blurb and optional link"))
		return
	}

	sub, _ := auth.SubjectFromContext(r.Context())
	id, err := h.svc.Add(r.Context(), sub, req.Title, model.Genre(req.Genre), req.Blurb, req.Link)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRecommendationResponse{ID: id})
}

// HandleDelete removes a recommendation.
//
// HTTP: DELETE /api/recommendations/{id}
// Auth: required (owner or admin)
// Response: 204
func (h *RecommendationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sub, _ := auth.SubjectFromContext(r.Context())
	if err := h.svc.Remove(r.Context(), sub, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStaffPick marks a recommendation as a staff pick.
//
// HTTP: POST /api/recommendations/{id}/staff-pick
// Auth: required (admin)
// Response: 204
func (h *RecommendationHandler) HandleStaffPick(w http.ResponseWriter, r *http.Request) {
	sub, _ := auth.SubjectFromContext(r.Context())
	if err := h.svc.MarkAsStaffPick(r.Context(), sub, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
