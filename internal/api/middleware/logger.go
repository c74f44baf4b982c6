package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/stickergen/internal/logger"
)

const (
	// RequestIDHeader carries the request id back to the caller.
	RequestIDHeader = "X-Request-ID"

	ctxKeyLogger = "logger"
)

// LoggerMiddleware returns a Gin middleware that injects a request-scoped logger.
// An incoming X-Request-ID is reused so client and server logs line up.
// Parameters:
//   - log: base logger to enrich with request fields.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		ctx := log.WithContext(c.Request.Context())
		ctx = logger.WithFields(ctx, logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(ctxKeyLogger, logger.FromContext(ctx))
		c.Header(RequestIDHeader, requestID)

		c.Next()

		// Auth may have added user_id after this middleware ran
		ctx = c.Request.Context()

		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}

		status := c.Writer.Status()
		entry := logger.With(logger.Fields{
			logger.FieldStatus:     status,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			logger.FieldSize:       c.Writer.Size(),
		})
		switch {
		case status >= 500:
			entry.Error(ctx, "Request failed: method=%s, path=%s, client_ip=%s", c.Request.Method, fullPath, c.ClientIP())
		case status >= 400:
			entry.Warn(ctx, "Request rejected: method=%s, path=%s, client_ip=%s", c.Request.Method, fullPath, c.ClientIP())
		default:
			entry.Info(ctx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
		}
	}
}

// GetLogger extracts logger from Gin context or request context.
func GetLogger(c *gin.Context) *logger.Logger {
	if l, exists := c.Get(ctxKeyLogger); exists {
		if log, ok := l.(*logger.Logger); ok {
			return log
		}
	}
	return logger.FromContext(c.Request.Context())
}
