package middleware

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// Logging returns a request-logging middleware writing through the
// application logger.
func Logging(logger *log.Logger) gin.HandlerFunc {
	requestLog := logger.With("component", "http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		requestLog.Info(c.Request.URL.Path,
			"method", c.Request.Method,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}
}
