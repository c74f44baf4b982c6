package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Artifact is a stored image produced by a completed job.
type Artifact struct {
	ID           string            `gorm:"type:text;primaryKey" json:"id"`
	JobID        string            `gorm:"type:text;not null;index" json:"job_id"`
	StorageKey   string            `gorm:"type:text;not null" json:"storage_key"`
	PublicURL    string            `gorm:"type:text;not null" json:"public_url"`
	GenerationID string            `gorm:"type:text" json:"generation_id"`
	Format       string            `gorm:"type:text" json:"format"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	FileSize     int64             `json:"file_size"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
