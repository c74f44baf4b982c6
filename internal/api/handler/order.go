package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/stickergen/internal/api/middleware"
	"github.com/timmy/stickergen/internal/domain"
	"github.com/timmy/stickergen/internal/logger"
)

// OrderService places print orders.
type OrderService interface {
	PlaceOrder(ctx context.Context, userID, jobID string, quantity int) (*domain.PrintOrder, error)
}

type OrderHandler struct {
	orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// OrderRequest is the order body. OrderID is the id of the caller's completed job.
type OrderRequest struct {
	OrderID  string `json:"orderId" binding:"required"`
	Quantity int    `json:"quantity"`
}

type OrderResponse struct {
	Success             bool    `json:"success"`
	PrintPartnerOrderID string  `json:"printPartnerOrderId"`
	TotalCost           float64 `json:"totalCost"`
	Message             string  `json:"message"`
}

// PlaceOrder handles POST /api/order.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	order, err := h.orders.PlaceOrder(ctx, userID, req.OrderID, req.Quantity)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be at least 1"})
		return
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	case errors.Is(err, domain.ErrJobNotComplete):
		c.JSON(http.StatusConflict, gin.H{"error": "Sticker is not ready yet"})
		return
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	default:
		logger.CtxError(ctx, "Order error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
		return
	}

	c.JSON(http.StatusOK, OrderResponse{
		Success:             true,
		PrintPartnerOrderID: order.PrintPartnerOrderID,
		TotalCost:           order.TotalCost,
		Message:             "Order placed successfully",
	})
}
