package repository

import (
	"context"

	"github.com/timmy/stickergen/internal/domain"
	"gorm.io/gorm"
)

// OrderRepository persists print orders.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.PrintOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// ListByJob returns the print orders placed for a job, newest first.
func (r *OrderRepository) ListByJob(ctx context.Context, jobID string) ([]domain.PrintOrder, error) {
	var orders []domain.PrintOrder
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}
