package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/stickergen/internal/domain"
	"github.com/timmy/stickergen/internal/logger"
)

// OrderService places print orders for completed jobs.
// Fulfilment is simulated: the partner order id and cost are computed locally.
type OrderService struct {
	jobs      JobStore
	orders    OrderStore
	unitPrice float64
	now       func() time.Time
}

func NewOrderService(jobs JobStore, orders OrderStore, unitPrice float64) *OrderService {
	return &OrderService{
		jobs:      jobs,
		orders:    orders,
		unitPrice: unitPrice,
		now:       time.Now,
	}
}

// PlaceOrder orders quantity prints of a completed job owned by userID.
// Parameters:
//   - ctx: request context.
//   - userID: caller; must own the job.
//   - jobID: job whose result is printed.
//   - quantity: number of stickers, at least 1.
// Returns:
//   - *domain.PrintOrder: persisted order with partner id and total cost.
//   - error: domain.ErrInvalidQuantity, domain.ErrNotFound, domain.ErrJobNotComplete, or a store error.
func (s *OrderService) PlaceOrder(ctx context.Context, userID, jobID string, quantity int) (*domain.PrintOrder, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	job, err := s.jobs.GetByIDForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusComplete {
		return nil, domain.ErrJobNotComplete
	}

	order := &domain.PrintOrder{
		ID:                  uuid.New().String(),
		JobID:               job.ID,
		UserID:              userID,
		Quantity:            quantity,
		TotalCost:           math.Round(float64(quantity)*s.unitPrice*100) / 100,
		PrintPartnerOrderID: fmt.Sprintf("PRINT_%d", s.now().UnixMilli()),
		Status:              domain.PrintOrderStatusOrdered,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	logger.CtxInfo(ctx, "Print order placed: job_id=%s, quantity=%d, total_cost=%.2f, partner_order_id=%s",
		job.ID, quantity, order.TotalCost, order.PrintPartnerOrderID)
	return order, nil
}
