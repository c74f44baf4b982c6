package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/stickergen/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newPendingJob(t *testing.T, repo *JobRepository, userID, prompt string) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:     uuid.NewString(),
		UserID: userID,
		Prompt: prompt,
		Status: domain.JobStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestJobRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	job := newPendingJob(t, repo, "user-1", "A cute cartoon cat wearing sunglasses")

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, "A cute cartoon cat wearing sunglasses", got.Prompt)
	assert.Nil(t, got.ResultURL)
	assert.Nil(t, got.ErrorMsg)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepositoryGetByIDForUser(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))
	job := newPendingJob(t, repo, "owner", "p")

	got, err := repo.GetByIDForUser(ctx, job.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = repo.GetByIDForUser(ctx, job.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepositoryHappyPath(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewJobRepository(db)
	artifacts := NewArtifactRepository(db)
	job := newPendingJob(t, repo, "user-1", "p")

	require.NoError(t, repo.MarkProcessing(ctx, job.ID))
	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)

	artifact := domain.Artifact{
		ID:           uuid.NewString(),
		JobID:        job.ID,
		StorageKey:   "user-1/" + job.ID + "/1.png",
		PublicURL:    "https://cdn.example/user-1/" + job.ID + "/1.png",
		GenerationID: "gpt-image-1_1",
		Format:       "png",
		Metadata:     datatypes.JSONMap{"model": "gpt-image-1"},
	}
	require.NoError(t, repo.MarkComplete(ctx, job.ID, artifact.PublicURL, []domain.Artifact{artifact}))

	got, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusComplete, got.Status)
	require.NotNil(t, got.ResultURL)
	assert.Equal(t, artifact.PublicURL, *got.ResultURL)
	assert.Nil(t, got.ErrorMsg)

	stored, err := artifacts.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "gpt-image-1_1", stored[0].GenerationID)
	assert.Equal(t, "gpt-image-1", stored[0].Metadata["model"])
}

func TestJobRepositoryRejectsInvalidTransitions(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name  string
		setup func(repo *JobRepository, id string)
		apply func(repo *JobRepository, id string) error
	}{
		{
			name:  "complete from pending",
			setup: func(repo *JobRepository, id string) {},
			apply: func(repo *JobRepository, id string) error {
				return repo.MarkComplete(ctx, id, "https://x/1.png", nil)
			},
		},
		{
			name: "processing twice",
			setup: func(repo *JobRepository, id string) {
				require.NoError(t, repo.MarkProcessing(ctx, id))
			},
			apply: func(repo *JobRepository, id string) error { return repo.MarkProcessing(ctx, id) },
		},
		{
			name: "error after complete",
			setup: func(repo *JobRepository, id string) {
				require.NoError(t, repo.MarkProcessing(ctx, id))
				require.NoError(t, repo.MarkComplete(ctx, id, "https://x/1.png", nil))
			},
			apply: func(repo *JobRepository, id string) error { return repo.MarkError(ctx, id, "late") },
		},
		{
			name: "complete after error",
			setup: func(repo *JobRepository, id string) {
				require.NoError(t, repo.MarkError(ctx, id, "boom"))
			},
			apply: func(repo *JobRepository, id string) error {
				return repo.MarkComplete(ctx, id, "https://x/1.png", nil)
			},
		},
		{
			name:  "unknown job",
			setup: func(repo *JobRepository, id string) {},
			apply: func(repo *JobRepository, id string) error { return repo.MarkProcessing(ctx, "missing") },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewJobRepository(newTestDB(t))
			job := newPendingJob(t, repo, "u", "p")
			tc.setup(repo, job.ID)

			before, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)

			err = tc.apply(repo, job.ID)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)

			after, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.ResultURL, after.ResultURL)
			assert.Equal(t, before.ErrorMsg, after.ErrorMsg)
		})
	}
}

func TestJobRepositoryMarkCompleteRollsBackArtifacts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewJobRepository(db)
	artifacts := NewArtifactRepository(db)

	job := newPendingJob(t, repo, "u", "p")
	require.NoError(t, repo.MarkError(ctx, job.ID, "swept"))

	err := repo.MarkComplete(ctx, job.ID, "https://x/1.png", []domain.Artifact{{
		ID: uuid.NewString(), JobID: job.ID, StorageKey: "k", PublicURL: "https://x/1.png",
	}})
	require.True(t, errors.Is(err, domain.ErrInvalidTransition))

	count, err := artifacts.CountByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestJobRepositoryConcurrentTerminalWriters(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))
	job := newPendingJob(t, repo, "u", "p")
	require.NoError(t, repo.MarkProcessing(ctx, job.ID))

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = repo.MarkComplete(ctx, job.ID, "https://x/1.png", nil)
	}()
	go func() {
		defer wg.Done()
		results[1] = repo.MarkError(ctx, job.ID, "boom")
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.IsTerminal())
	assert.Equal(t, got.Status == domain.JobStatusComplete, got.ResultURL != nil)
	assert.Equal(t, got.Status == domain.JobStatusError, got.ErrorMsg != nil)
}

func TestJobRepositoryListByUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewJobRepository(db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		job := &domain.Job{
			ID:        uuid.NewString(),
			UserID:    "u1",
			Prompt:    fmt.Sprintf("prompt-%d", i),
			Status:    domain.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, job))
	}
	newPendingJob(t, repo, "u2", "other user")

	page, err := repo.ListByUser(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "prompt-4", page[0].Prompt)
	assert.Equal(t, "prompt-3", page[1].Prompt)

	page, err = repo.ListByUser(ctx, "u1", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "prompt-0", page[0].Prompt)
}

func TestJobRepositoryFailStale(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewJobRepository(db)

	stalePending := newPendingJob(t, repo, "u", "old pending")
	staleProcessing := newPendingJob(t, repo, "u", "old processing")
	require.NoError(t, repo.MarkProcessing(ctx, staleProcessing.ID))
	done := newPendingJob(t, repo, "u", "old complete")
	require.NoError(t, repo.MarkProcessing(ctx, done.ID))
	require.NoError(t, repo.MarkComplete(ctx, done.ID, "https://x/1.png", nil))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&domain.Job{}).Where("1 = 1").Update("updated_at", old).Error)

	fresh := newPendingJob(t, repo, "u", "fresh")

	n, err := repo.FailStale(ctx, time.Now().Add(-10*time.Minute), "Image generation did not finish")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, id := range []string{stalePending.ID, staleProcessing.ID} {
		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusError, got.Status)
		require.NotNil(t, got.ErrorMsg)
		assert.Equal(t, "Image generation did not finish", *got.ErrorMsg)
	}

	got, err := repo.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusComplete, got.Status)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
}
