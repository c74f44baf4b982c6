package service

import (
	"context"
	"time"

	"github.com/timmy/stickergen/internal/domain"
)

// JobStore is the persistence the job lifecycle depends on.
// repository.JobRepository is the production implementation.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Job, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkComplete(ctx context.Context, id, resultURL string, artifacts []domain.Artifact) error
	MarkError(ctx context.Context, id, msg string) error
	FailStale(ctx context.Context, before time.Time, msg string) (int64, error)
}

type ArtifactStore interface {
	ListByJob(ctx context.Context, jobID string) ([]domain.Artifact, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *domain.PrintOrder) error
	ListByJob(ctx context.Context, jobID string) ([]domain.PrintOrder, error)
}

// TaskScheduler runs work after the caller has returned. TaskRunner implements it.
type TaskScheduler interface {
	Go(name string, fn func(ctx context.Context) error) bool
}

// JobRunner executes one job to a terminal state. GenerationWorker implements it.
type JobRunner interface {
	Run(ctx context.Context, job *domain.Job) error
}
