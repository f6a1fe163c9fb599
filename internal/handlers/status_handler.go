package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/providers"
	"github.com/ternarybob/reperio/internal/queue"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	jobs      interfaces.JobStorage
	queue     *queue.Manager
	registry  *providers.Registry
	logger    arbor.ILogger
	startedAt time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(jobs interfaces.JobStorage, queueMgr *queue.Manager, registry *providers.Registry, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		jobs:      jobs,
		queue:     queueMgr,
		registry:  registry,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	queueDepth := -1
	if depth, err := h.queue.Len(); err == nil {
		queueDepth = depth
	} else {
		h.logger.Warn().Err(err).Msg("Failed to read queue depth")
	}

	active := 0
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusProcessing} {
		if jobs, err := h.jobs.GetJobsByStatus(r.Context(), status); err == nil {
			active += len(jobs)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":     common.GetFullVersion(),
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
		"queue_depth": queueDepth,
		"active_jobs": active,
		"providers":   h.registry.Platforms(),
	})
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}
