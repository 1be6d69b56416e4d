package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nimbusops/incidentwatch/internal/detection"
	"github.com/nimbusops/incidentwatch/internal/incidents"
	"github.com/nimbusops/incidentwatch/internal/metrics"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine     *detection.Engine
	source     metrics.Source
	store      incidents.Store
	resourceID string
	lookback   int
}

// Response helpers

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetMetrics fetches a metric snapshot for the given kind over the given
// trailing window. Validation happens here, before the core is called.
func (h *Handlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind := metrics.Kind(chi.URLParam(r, "kind"))
	switch kind {
	case metrics.KindCPU, metrics.KindMemory, metrics.KindNetwork:
	default:
		writeError(w, http.StatusBadRequest, "Unknown metric kind")
		return
	}

	duration, err := strconv.Atoi(chi.URLParam(r, "durationMinutes"))
	if err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "Duration must be a positive integer")
		return
	}

	snap, err := h.source.Fetch(ctx, h.resourceID, duration, kind)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// DetectIncidents runs one detection cycle and returns the detected
// incidents. When every metric kind's fetch failed, the result is
// service-unavailable rather than a silent empty list.
func (h *Handlers) DetectIncidents(w http.ResponseWriter, r *http.Request) {
	result := h.engine.RunCycle(r.Context())

	if result.AllFetchesFailed() {
		writeError(w, http.StatusServiceUnavailable, "Could not fetch metrics from any source")
		return
	}

	incs := result.Incidents
	if incs == nil {
		incs = []*incidents.Incident{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents":    incs,
		"count":        len(incs),
		"store_errors": result.StoreErrors,
		"fetch_errors": len(result.FetchErrors),
		"evaluated_at": result.EvaluatedAt,
	})
}

// ListIncidents returns all stored incidents, newest first
func (h *Handlers) ListIncidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	incs, err := h.store.ListAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if incs == nil {
		incs = []*incidents.Incident{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": incs,
		"count":     len(incs),
	})
}

// GetStats returns summary counts over stored incidents
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	incs, err := h.store.ListAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := incidents.Summary{
		Total:      len(incs),
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for _, inc := range incs {
		summary.BySeverity[string(inc.Severity)]++
		summary.ByType[string(inc.Type)]++
	}

	writeJSON(w, http.StatusOK, summary)
}
