package domain

import "time"

// PrintOrderStatus tracks a print order. It is independent of JobStatus.
type PrintOrderStatus string

const (
	PrintOrderStatusOrdered PrintOrderStatus = "ordered"
)

// PrintOrder records a request to print stickers from a completed job.
type PrintOrder struct {
	ID                  string           `gorm:"type:text;primaryKey" json:"id"`
	JobID               string           `gorm:"type:text;not null;index" json:"job_id"`
	UserID              string           `gorm:"type:text;not null;index" json:"user_id"`
	Quantity            int              `gorm:"not null" json:"quantity"`
	TotalCost           float64          `gorm:"not null" json:"total_cost"`
	PrintPartnerOrderID string           `gorm:"type:text;not null" json:"print_partner_order_id"`
	Status              PrintOrderStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
}

func (PrintOrder) TableName() string {
	return "print_orders"
}
