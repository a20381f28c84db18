package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petterhj/yt-dvr/types"
)

// respondError translates service-layer sentinel errors into HTTP
// responses. Unknown errors become a 500 without leaking detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrUnknownSource):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, types.ErrItemNotFound), errors.Is(err, types.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, types.ErrDuplicateItem), errors.Is(err, types.ErrActiveJobExists):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case errors.Is(err, types.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}
