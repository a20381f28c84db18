package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petterhj/yt-dvr/services"
)

// ItemHandler handles item registration and lookup endpoints.
type ItemHandler struct {
	recorder *services.Recorder
}

// NewItemHandler creates a new item handler.
func NewItemHandler(recorder *services.Recorder) *ItemHandler {
	return &ItemHandler{recorder: recorder}
}

// ItemIn is the request body for adding an item.
type ItemIn struct {
	Source string `json:"source" binding:"required"`
	ItemID string `json:"item_id" binding:"required"`
}

// AddItem registers a new item and creates its first job.
func (h *ItemHandler) AddItem(c *gin.Context) {
	var in ItemIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	item, err := h.recorder.AddItem(c.Request.Context(), in.Source, in.ItemID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// ListItems returns all items, optionally restricted to one source via
// the route parameter.
func (h *ItemHandler) ListItems(c *gin.Context) {
	items, err := h.recorder.ListItems(c.Request.Context(), c.Param("source"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// GetItem returns a single item with its job history.
func (h *ItemHandler) GetItem(c *gin.Context) {
	item, err := h.recorder.GetItem(c.Request.Context(), c.Param("source"), c.Param("item_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// DeleteItem removes an item and all of its jobs.
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	err := h.recorder.DeleteItem(c.Request.Context(), c.Param("source"), c.Param("item_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"detail": "item deleted"})
}

// Catalog lists what a source currently offers, without storing
// anything.
func (h *ItemHandler) Catalog(c *gin.Context) {
	items, err := h.recorder.Catalog(c.Request.Context(), c.Param("source"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// RetryItem creates a fresh job for an item whose previous job reached a
// terminal state.
func (h *ItemHandler) RetryItem(c *gin.Context) {
	job, err := h.recorder.RetryItem(c.Request.Context(), c.Param("source"), c.Param("item_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
