package api

import (
	"net/http"
	"strings"
)

// StatsProvider exposes the service counters served on /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the pipeline counters.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats[?fields=a,b].
// With fields set only the named keys are returned; unknown keys are omitted.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	stats := h.statsProvider.GetStats()

	if raw := r.URL.Query().Get("fields"); raw != "" {
		picked := make(map[string]interface{})
		for _, key := range strings.Split(raw, ",") {
			key = strings.TrimSpace(key)
			if v, ok := stats[key]; ok {
				picked[key] = v
			}
		}
		stats = picked
	}

	// Counters move while a run is in progress.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stats)
}

// allowRead rejects anything but GET and HEAD with 405.
func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	return false
}
