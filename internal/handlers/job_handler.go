// -----------------------------------------------------------------------
// Job Handler - REST surface for creating and polling search jobs
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/jobs"
	"github.com/ternarybob/reperio/internal/models"
	storagebadger "github.com/ternarybob/reperio/internal/storage/badger"
)

// defaultCreatorLimit caps inlined creators on status responses unless the
// caller asks for more.
const defaultCreatorLimit = 100

// JobHandler handles search job API requests
type JobHandler struct {
	jobService *jobs.Service
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService *jobs.Service, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		logger:     logger,
	}
}

// CreateJobHandler starts a new creator search.
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req jobs.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	job, err := h.jobService.CreateJob(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("platform", req.Platform).Msg("Job creation rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": string(job.Status),
		"target": job.TargetCount,
	})
}

// ListJobsHandler returns jobs, newest first.
// GET /api/jobs?status=processing&platform=instagram&owner=ow-1&limit=50&offset=0
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.JobListOptions{
		OwnerID:  r.URL.Query().Get("owner"),
		Status:   models.JobStatus(r.URL.Query().Get("status")),
		Platform: models.Platform(r.URL.Query().Get("platform")),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}

	jobList, err := h.jobService.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobList,
		"count": len(jobList),
	})
}

// JobRoutesHandler dispatches /api/jobs/{id} and /api/jobs/{id}/creators.
func (h *JobHandler) JobRoutesHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	if strings.HasSuffix(path, "/creators") {
		h.getCreators(w, r, strings.TrimSuffix(path, "/creators"))
		return
	}

	h.getStatus(w, r, path)
}

// getStatus serves the poll shape for a single job.
// GET /api/jobs/{id}?creators=25
func (h *JobHandler) getStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status, err := h.jobService.Status(r.Context(), jobID, queryInt(r, "creators", 0))
	if err != nil {
		if errors.Is(err, storagebadger.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job status")
		WriteError(w, http.StatusInternalServerError, "Failed to load job status")
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// getCreators serves the discovered creator list for a job.
// GET /api/jobs/{id}/creators?limit=200
func (h *JobHandler) getCreators(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if _, err := h.jobService.GetJob(r.Context(), jobID); err != nil {
		if errors.Is(err, storagebadger.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
		WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	creators, err := h.jobService.Creators(r.Context(), jobID, queryInt(r, "limit", defaultCreatorLimit))
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load creators")
		WriteError(w, http.StatusInternalServerError, "Failed to load creators")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":   jobID,
		"creators": creators,
		"count":    len(creators),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
		return parsed
	}
	return fallback
}
