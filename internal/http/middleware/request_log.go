package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

// RequestLogger writes one line per request once the handler chain finishes.
// Server errors log at error level, client errors at warn.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if msg := c.Errors.ByType(gin.ErrorTypeAny).String(); msg != "" {
			fields = append(fields, "error", msg)
		}

		reqLog := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			reqLog.Error("request failed", fields...)
		case status >= 400:
			reqLog.Warn("request rejected", fields...)
		default:
			reqLog.Info("request served", fields...)
		}
	}
}
