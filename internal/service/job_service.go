package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/timmy/stickergen/internal/domain"
	"github.com/timmy/stickergen/internal/logger"
)

// ErrUnavailable is returned when a job cannot be scheduled because the service is stopping.
var ErrUnavailable = errors.New("service unavailable")

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100

	maxHistoryOffset = math.MaxInt32
)

// JobService implements submission, status lookup and history for generation jobs.
type JobService struct {
	jobs      JobStore
	artifacts ArtifactStore
	orders    OrderStore
	runner    JobRunner
	tasks     TaskScheduler

	// statusRequiresOwner scopes Status lookups to the job owner
	statusRequiresOwner bool
}

// JobServiceConfig holds configuration for JobService.
type JobServiceConfig struct {
	StatusRequiresOwner bool
}

// NewJobService creates a new JobService.
func NewJobService(
	jobs JobStore,
	artifacts ArtifactStore,
	orders OrderStore,
	runner JobRunner,
	tasks TaskScheduler,
	cfg *JobServiceConfig,
) *JobService {
	return &JobService{
		jobs:                jobs,
		artifacts:           artifacts,
		orders:              orders,
		runner:              runner,
		tasks:               tasks,
		statusRequiresOwner: cfg.StatusRequiresOwner,
	}
}

// StatusRequiresOwner reports whether Status needs a signed-in caller.
func (s *JobService) StatusRequiresOwner() bool {
	return s.statusRequiresOwner
}

// Submit creates a pending job and schedules its generation.
// The job row is committed before Submit returns, so a status lookup right after sees it.
// Parameters:
//   - ctx: request context; only its logger fields reach the background task.
//   - userID: authenticated caller, becomes the job owner.
//   - prompt: raw user prompt, stored as given after trimming.
// Returns:
//   - *domain.Job: the pending job.
//   - error: domain.ErrUnauthorized, domain.ErrEmptyPrompt, ErrUnavailable, or a store error.
func (s *JobService) Submit(ctx context.Context, userID, prompt string) (*domain.Job, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}

	job := &domain.Job{
		ID:     uuid.New().String(),
		UserID: userID,
		Prompt: prompt,
		Status: domain.JobStatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	ctx = logger.SetJobID(ctx, job.ID)
	reqLogger := logger.FromContext(ctx)
	snapshot := *job

	started := s.tasks.Go("generate:"+job.ID, func(taskCtx context.Context) error {
		// Keep the request's log fields, not its cancellation. The runner's task name wins.
		task := logger.GetFieldString(taskCtx, logger.FieldTask)
		taskCtx = reqLogger.WithField(logger.FieldTask, task).WithContext(taskCtx)
		return s.runner.Run(taskCtx, &snapshot)
	})
	if !started {
		if err := s.jobs.MarkError(context.WithoutCancel(ctx), job.ID, MsgServiceShuttingDown); err != nil {
			logger.CtxError(ctx, "Failed to record unscheduled job: %v", err)
		}
		return nil, ErrUnavailable
	}

	logger.CtxInfo(ctx, "Job queued")
	return job, nil
}

// Status returns the current state of a job.
// When owner scoping is enabled, a job owned by someone else is reported as domain.ErrNotFound.
func (s *JobService) Status(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	if !s.statusRequiresOwner {
		return s.jobs.GetByID(ctx, jobID)
	}
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.jobs.GetByIDForUser(ctx, jobID, userID)
}

// HistoryPage is one page of a user's jobs.
type HistoryPage struct {
	Jobs    []domain.Job
	Page    int
	Limit   int
	HasMore bool
}

// History lists the caller's jobs newest first. page is 1-based.
func (s *JobService) History(ctx context.Context, userID string, page, limit int) (*HistoryPage, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	// Offsets past this overflow the database offset range
	if page-1 > maxHistoryOffset/limit {
		return &HistoryPage{Jobs: []domain.Job{}, Page: page, Limit: limit}, nil
	}

	// Fetch one extra row to learn whether another page exists
	jobs, err := s.jobs.ListByUser(ctx, userID, limit+1, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	hasMore := len(jobs) > limit
	if hasMore {
		jobs = jobs[:limit]
	}
	return &HistoryPage{Jobs: jobs, Page: page, Limit: limit, HasMore: hasMore}, nil
}

// JobDetail is a job with its stored images and print orders.
type JobDetail struct {
	Job       *domain.Job
	Artifacts []domain.Artifact
	Orders    []domain.PrintOrder
}

// Detail returns one of the caller's jobs with its artifacts and orders.
func (s *JobService) Detail(ctx context.Context, userID, jobID string) (*JobDetail, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	job, err := s.jobs.GetByIDForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	artifacts, err := s.artifacts.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	orders, err := s.orders.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return &JobDetail{Job: job, Artifacts: artifacts, Orders: orders}, nil
}
