package repository

import (
	"context"

	"github.com/timmy/stickergen/internal/domain"
	"gorm.io/gorm"
)

// ArtifactRepository reads stored images of completed jobs.
// Artifacts are written together with the job's completion, see JobRepository.MarkComplete.
type ArtifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// ListByJob returns a job's artifacts in creation order.
func (r *ArtifactRepository) ListByJob(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Order("storage_key ASC").
		Find(&artifacts).Error
	return artifacts, err
}

// CountByJob returns the number of artifacts stored for a job.
func (r *ArtifactRepository) CountByJob(ctx context.Context, jobID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Artifact{}).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}
