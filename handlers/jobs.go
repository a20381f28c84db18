package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petterhj/yt-dvr/services"
	"github.com/petterhj/yt-dvr/types"
)

// JobHandler handles job listing and dispatch endpoints.
type JobHandler struct {
	recorder *services.Recorder
}

// NewJobHandler creates a new job handler.
func NewJobHandler(recorder *services.Recorder) *JobHandler {
	return &JobHandler{recorder: recorder}
}

// ListJobs returns all jobs, optionally filtered by the status query
// parameter.
func (h *JobHandler) ListJobs(c *gin.Context) {
	status := types.JobStatus(c.Query("status"))
	switch status {
	case "", types.JobStatusNew, types.JobStatusQueued, types.JobStatusStarted,
		types.JobStatusDownloaded, types.JobStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid status filter"})
		return
	}

	jobs, err := h.recorder.ListJobs(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// StartJobs enqueues every NEW job and hands them to the task runner.
// The download work continues in the background after the response.
func (h *JobHandler) StartJobs(c *gin.Context) {
	jobs, err := h.recorder.DispatchQueue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}
