package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"profilegrab/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// requestLogger logs one line per request once it completes
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		fields := map[string]interface{}{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}

		switch {
		case len(c.Errors) > 0:
			fields["errors"] = c.Errors.String()
			log.ErrorWithFields("HTTP request with errors", fields)
		case strings.HasPrefix(c.Request.URL.Path, "/healthz"), c.Request.URL.Path == "/metrics":
			log.DebugWithFields("HTTP request", fields)
		default:
			log.InfoWithFields("HTTP request", fields)
		}
	}
}

// recoveryMiddleware turns a handler panic into a 500
func recoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorWithFields("Panic recovered", map[string]interface{}{
					"panic": r,
					"path":  c.Request.URL.Path,
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
