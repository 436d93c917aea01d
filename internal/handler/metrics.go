package handler

import (
	"log/slog"
	"net/http"

	"github.com/tasnimbay/issuedeck/internal/service"
)

// MetricsHandler serves the repository metrics report.
type MetricsHandler struct {
	metrics *service.MetricsService
	logger  *slog.Logger
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(metrics *service.MetricsService, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, logger: logger}
}

// HandleMetrics serves GET /api/metrics?repository=owner/name.
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repository")

	report, err := h.metrics.BuildReport(r.Context(), repo)
	if err != nil {
		h.logger.Error("building metrics report",
			slog.String("repository", repo),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
