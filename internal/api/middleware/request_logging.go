// Package middleware provides HTTP middleware components for the Vertex
// Bridge API server.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestLogging tags every request with a uuid and logs method, path,
// status and duration after completion. The enabled callback is consulted
// per request so the setting can change at runtime without rebuilding the
// middleware chain.
func RequestLogging(enabled func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled() {
			c.Next()
			return
		}

		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		log.Infof("request %s: %s %s -> %d (%s)",
			requestID, c.Request.Method, path, c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}
