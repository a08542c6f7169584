package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/efast/internal/adapters/repository"
	"github.com/okian/efast/internal/domain/model"
)

const (
	defaultFeatureLimit = 1000
	maxFeatureLimit     = 100000
)

// FeaturesHandler serves the active feature set and the feature log.
type FeaturesHandler struct {
	active ActiveSet
	runs   RunReader
}

// NewFeaturesHandler creates a handler. Either source may be nil.
func NewFeaturesHandler(active ActiveSet, runs RunReader) *FeaturesHandler {
	return &FeaturesHandler{active: active, runs: runs}
}

type activeResponse struct {
	Count    int64         `json:"count"`
	Features []model.Point `json:"features"`
}

// HandleActive handles GET /features.
func (h *FeaturesHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	if h.active == nil {
		writeError(w, http.StatusNotFound, "not_enabled", fmt.Errorf("active set %w", ErrUnavailable))
		return
	}
	points := h.active.Snapshot(r.Context())
	if points == nil {
		points = []model.Point{}
	}
	writeJSON(w, http.StatusOK, activeResponse{Count: int64(len(points)), Features: points})
}

// HandleRuns handles GET /runs.
func (h *FeaturesHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "not_enabled", fmt.Errorf("feature log %w", ErrUnavailable))
		return
	}
	runs, err := h.runs.Runs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if runs == nil {
		runs = []repository.RunInfo{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRunFeatures handles GET /runs/{id}/features?limit=N.
func (h *FeaturesHandler) HandleRunFeatures(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "not_enabled", fmt.Errorf("feature log %w", ErrUnavailable))
		return
	}

	limit := defaultFeatureLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxFeatureLimit {
			writeError(w, http.StatusBadRequest, "invalid_limit",
				fmt.Errorf("%w: limit must be between 1 and %d", ErrBadRequest, maxFeatureLimit))
			return
		}
		limit = n
	}

	features, err := h.runs.Features(r.Context(), r.PathValue("id"), limit)
	switch {
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "invalid_limit", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if features == nil {
		features = []repository.StoredFeature{}
	}
	writeJSON(w, http.StatusOK, features)
}
