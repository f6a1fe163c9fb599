// -----------------------------------------------------------------------
// Continuation Handler - Signed ingress for externally triggered steps
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// ContinuationHandler accepts continuation triggers from outside the
// process, for deployments where an external queue or scheduler drives job
// steps. The request body carries only the job ID; everything else is
// re-read from storage when the step runs. Signature verification happens
// in middleware before this handler is reached.
type ContinuationHandler struct {
	queue  interfaces.ContinuationQueue
	logger arbor.ILogger
}

// NewContinuationHandler creates a new continuation handler
func NewContinuationHandler(queue interfaces.ContinuationQueue, logger arbor.ILogger) *ContinuationHandler {
	return &ContinuationHandler{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueHandler accepts a continuation trigger.
// POST /api/continuations  {"job_id": "..."}
func (h *ContinuationHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if body.JobID == "" {
		WriteError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	if err := h.queue.Enqueue(r.Context(), models.NewContinuation(body.JobID)); err != nil {
		h.logger.Error().Err(err).Str("job_id", body.JobID).Msg("Failed to enqueue continuation")
		WriteError(w, http.StatusInternalServerError, "Failed to enqueue continuation")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "enqueued",
		"job_id": body.JobID,
	})
}
