package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/petterhj/yt-dvr/config"
	"github.com/petterhj/yt-dvr/services"
	"github.com/petterhj/yt-dvr/sources"
)

// StateHandler serves health and diagnostics endpoints.
type StateHandler struct {
	recorder *services.Recorder
	registry *sources.Registry
	cfg      *config.Config
}

// NewStateHandler creates a new state handler.
func NewStateHandler(recorder *services.Recorder, registry *sources.Registry, cfg *config.Config) *StateHandler {
	return &StateHandler{recorder: recorder, registry: registry, cfg: cfg}
}

// HealthCheck returns the health status of the service.
func (h *StateHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "yt-dvr",
		"timestamp": time.Now().Unix(),
	})
}

// State returns the effective configuration and job counts.
func (h *StateHandler) State(c *gin.Context) {
	counts, err := h.recorder.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	cfg := h.cfg.Describe()
	cfg["sources"] = h.registry.Configs()

	c.JSON(http.StatusOK, gin.H{
		"config": cfg,
		"jobs":   counts,
	})
}
