package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/stickergen/internal/domain"
	"gorm.io/gorm"
)

// JobRepository persists generation jobs and guards their status transitions.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.Job: job record if found.
//   - error: domain.ErrNotFound if no such job exists.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// GetByIDForUser retrieves a job only if it belongs to userID.
func (r *JobRepository) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// ListByUser returns a user's jobs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: job owner.
//   - limit: page size.
//   - offset: number of rows to skip.
// Returns:
//   - []domain.Job: jobs ordered by created_at descending.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	var jobs []domain.Job
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	return jobs, err
}

// MarkProcessing moves a pending job to processing.
func (r *JobRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.transition(r.db.WithContext(ctx), id, domain.JobStatusProcessing, nil)
}

// MarkError moves a pending or processing job to error with a user-visible message.
func (r *JobRepository) MarkError(ctx context.Context, id, msg string) error {
	return r.transition(r.db.WithContext(ctx), id, domain.JobStatusError, map[string]interface{}{
		"error_msg": msg,
	})
}

// MarkComplete stores the job's artifacts and moves it from processing to complete
// in one transaction. resultURL becomes the job's result_url.
// Returns domain.ErrInvalidTransition, with nothing written, if the job already left processing.
func (r *JobRepository) MarkComplete(ctx context.Context, id, resultURL string, artifacts []domain.Artifact) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(artifacts) > 0 {
			if err := tx.Create(&artifacts).Error; err != nil {
				return fmt.Errorf("failed to save artifacts: %w", err)
			}
		}
		return r.transition(tx, id, domain.JobStatusComplete, map[string]interface{}{
			"result_url": resultURL,
		})
	})
}

// FailStale moves every pending or processing job not updated since before to error.
// Returns the number of jobs affected.
func (r *JobRepository) FailStale(ctx context.Context, before time.Time, msg string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("status IN ? AND updated_at < ?", statusStrings(domain.Predecessors(domain.JobStatusError)), before).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusError,
			"error_msg":  msg,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// transition applies a conditional status update. The WHERE clause only matches rows
// whose current status may legally move to target, so concurrent writers cannot regress a job.
func (r *JobRepository) transition(db *gorm.DB, id string, target domain.JobStatus, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     target,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	result := db.Model(&domain.Job{}).
		Where("id = ? AND status IN ?", id, statusStrings(domain.Predecessors(target))).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s -> %s: %w", id, target, domain.ErrInvalidTransition)
	}
	return nil
}

func statusStrings(statuses []domain.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
