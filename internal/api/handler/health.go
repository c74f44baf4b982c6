package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stickergen/internal/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db(ctx); err != nil {
			logger.CtxWarn(ctx, "Health check failed: database: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
