package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/learnpath/internal/auth"
	"github.com/sakif/learnpath/internal/service"
)

// MetricsHandler serves the progress-reporting endpoints. All reads; the
// one POST recomputes the stored rollup and doubles as the repair path
// when a mutation committed but its metrics refresh failed.
type MetricsHandler struct {
	metrics *service.MetricsService
	logger  *slog.Logger
}

func NewMetricsHandler(metrics *service.MetricsService, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, logger: logger}
}

// HandleOverview returns the stored rollup plus recent activity and
// per-level progress buckets.
//
// HTTP: GET /api/user-metrics
func (h *MetricsHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	overview, err := h.metrics.Overview(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// HandleRecalculate recomputes the rollup from the live tables and returns
// the fresh row.
//
// HTTP: POST /api/user-metrics/recalculate
func (h *MetricsHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	m, err := h.metrics.Recalculate(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("metrics recalculated", slog.String("userID", userID))
	writeJSON(w, http.StatusOK, m)
}

// HandlePathMetrics returns per-path completion reports with level
// breakdowns.
//
// HTTP: GET /api/user-metrics/paths
func (h *MetricsHandler) HandlePathMetrics(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	reports, err := h.metrics.PathMetrics(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleActivity returns the recent-activity feed. An absent or malformed
// limit falls back to the default; the service clamps the range.
//
// HTTP: GET /api/user-metrics/activity?limit=N
func (h *MetricsHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	report, err := h.metrics.Activity(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
