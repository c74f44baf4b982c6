package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/stickergen/internal/domain"
	"github.com/timmy/stickergen/internal/logger"
	"github.com/timmy/stickergen/internal/prompts"
	"github.com/timmy/stickergen/internal/storage"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// recordTimeout bounds the write that records a failure, which runs even when the task context is cancelled.
const recordTimeout = 10 * time.Second

// WorkerConfig holds configuration for the generation worker.
type WorkerConfig struct {
	Timeout           time.Duration
	ImagesPerJob      int
	UploadConcurrency int
}

// GenerationWorker drives a job from pending to complete or error:
// generate, decode, upload, then record the artifacts and result URL.
type GenerationWorker struct {
	jobs      JobStore
	generator ImageGenerator
	storage   storage.ObjectStorage
	cfg       WorkerConfig
	now       func() time.Time
}

// NewGenerationWorker creates a new generation worker.
// Parameters:
//   - jobs: job store used for status transitions.
//   - generator: image generation client.
//   - store: object storage for the generated images.
//   - cfg: timeout and fan-out settings.
// Returns:
//   - *GenerationWorker: worker ready to Run jobs.
func NewGenerationWorker(jobs JobStore, generator ImageGenerator, store storage.ObjectStorage, cfg WorkerConfig) *GenerationWorker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ImagesPerJob < 1 {
		cfg.ImagesPerJob = 1
	}
	if cfg.UploadConcurrency < 1 {
		cfg.UploadConcurrency = 2
	}
	return &GenerationWorker{
		jobs:      jobs,
		generator: generator,
		storage:   store,
		cfg:       cfg,
		now:       time.Now,
	}
}

// decodedImage is a generated image ready for upload.
type decodedImage struct {
	data          []byte
	format        string
	width         int
	height        int
	revisedPrompt string
}

// Run executes job to a terminal state. Failures are recorded on the job; the returned
// error only reports what happened for logging.
func (w *GenerationWorker) Run(ctx context.Context, job *domain.Job) (err error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:     job.ID,
		logger.FieldUserID:    job.UserID,
		logger.FieldComponent: "worker",
	})
	start := w.now()

	defer func() {
		if rec := recover(); rec != nil {
			err = &GenerationError{Kind: FailureInternal, Err: fmt.Errorf("panic: %v", rec)}
			w.fail(ctx, job.ID, err)
		}
	}()

	if err := w.jobs.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			logger.CtxWarn(ctx, "Job is no longer pending, skipping: %v", err)
			return err
		}
		w.fail(ctx, job.ID, &GenerationError{Kind: FailurePersistence, Err: err})
		return err
	}
	logger.CtxInfo(ctx, "Job processing started")

	artifacts, err := w.produce(ctx, job)
	if err != nil {
		w.fail(ctx, job.ID, err)
		return err
	}

	if err := w.jobs.MarkComplete(ctx, job.ID, artifacts[0].PublicURL, artifacts); err != nil {
		w.cleanup(ctx, artifacts)
		if errors.Is(err, domain.ErrInvalidTransition) {
			logger.CtxWarn(ctx, "Job finished elsewhere before completion was recorded: %v", err)
			return err
		}
		genErr := &GenerationError{Kind: FailurePersistence, Err: err}
		w.fail(ctx, job.ID, genErr)
		return genErr
	}

	logger.With(logger.Fields{}).
		WithStatus(string(domain.JobStatusComplete)).
		WithCount(len(artifacts)).
		WithDuration(start).
		Info(ctx, "Job completed: result_url=%s", artifacts[0].PublicURL)
	return nil
}

// produce generates, decodes and uploads the job's images and returns the unsaved artifacts.
func (w *GenerationWorker) produce(ctx context.Context, job *domain.Job) ([]domain.Artifact, error) {
	result, err := w.generate(ctx, prompts.StickerDesignPrompt(job.Prompt))
	if err != nil {
		return nil, err
	}

	images, err := decodeImages(result.Images)
	if err != nil {
		return nil, &GenerationError{Kind: FailureUpstream, Err: err}
	}

	return w.upload(ctx, job, result, images)
}

// generate calls the image API raced against the configured timeout.
func (w *GenerationWorker) generate(ctx context.Context, prompt string) (*GenerationResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	type outcome struct {
		result *GenerationResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: &GenerationError{Kind: FailureInternal, Err: fmt.Errorf("image generator panicked: %v", rec)}}
			}
		}()
		result, err := w.generator.Generate(genCtx, prompt, w.cfg.ImagesPerJob)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			var genErr *GenerationError
			if errors.As(out.err, &genErr) {
				return nil, genErr
			}
			if errors.Is(genCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &GenerationError{Kind: FailureTimeout, Err: out.err}
			}
			if ctx.Err() != nil {
				return nil, &GenerationError{Kind: FailureInternal, Err: ctx.Err()}
			}
			return nil, &GenerationError{Kind: FailureUpstream, Err: out.err}
		}
		if out.result == nil || len(out.result.Images) == 0 {
			return nil, &GenerationError{Kind: FailureUpstream, Err: &UpstreamError{Message: "No image data received from OpenAI"}}
		}
		return out.result, nil
	case <-genCtx.Done():
		if ctx.Err() != nil {
			return nil, &GenerationError{Kind: FailureInternal, Err: ctx.Err()}
		}
		return nil, &GenerationError{Kind: FailureTimeout, Err: genCtx.Err()}
	}
}

func decodeImages(images []GeneratedImage) ([]decodedImage, error) {
	out := make([]decodedImage, 0, len(images))
	for i, img := range images {
		if img.B64JSON == "" {
			return nil, &UpstreamError{Message: "No image data received from OpenAI"}
		}
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil || len(data) == 0 {
			return nil, &UpstreamError{Message: fmt.Sprintf("Invalid image data received from OpenAI (image %d)", i)}
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, &UpstreamError{Message: fmt.Sprintf("Unrecognized image format received from OpenAI (image %d)", i)}
		}
		out = append(out, decodedImage{
			data:          data,
			format:        format,
			width:         cfg.Width,
			height:        cfg.Height,
			revisedPrompt: img.RevisedPrompt,
		})
	}
	return out, nil
}

// upload stores images with at most UploadConcurrency uploads in flight.
// Any failure aborts the remaining uploads and removes the ones that succeeded.
func (w *GenerationWorker) upload(ctx context.Context, job *domain.Job, result *GenerationResult, images []decodedImage) ([]domain.Artifact, error) {
	at := w.now()
	artifacts := make([]domain.Artifact, len(images))
	uploaded := make([]bool, len(images))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.UploadConcurrency)

	for i, img := range images {
		i, img := i, img
		index := i
		if len(images) == 1 {
			index = -1
		}
		key := storage.ImageKey(job.UserID, job.ID, at, index, img.format)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			uploadStart := time.Now()
			if err := w.storage.Upload(gctx, key, bytes.NewReader(img.data), int64(len(img.data)), storage.ContentType(img.format)); err != nil {
				return err
			}

			metadata := datatypes.JSONMap{
				"model": result.Model,
				"size":  result.Size,
			}
			if img.revisedPrompt != "" {
				metadata["revised_prompt"] = img.revisedPrompt
			}

			mu.Lock()
			uploaded[i] = true
			artifacts[i] = domain.Artifact{
				ID:           uuid.New().String(),
				JobID:        job.ID,
				StorageKey:   key,
				PublicURL:    w.storage.GetURL(key),
				GenerationID: result.GenerationID,
				Format:       img.format,
				Width:        img.width,
				Height:       img.height,
				FileSize:     int64(len(img.data)),
				Metadata:     metadata,
			}
			mu.Unlock()

			logger.With(logger.Fields{}).WithSize(len(img.data)).WithDuration(uploadStart).
				Debug(gctx, "Uploaded image: key=%s", key)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var done []domain.Artifact
		for i, ok := range uploaded {
			if ok {
				done = append(done, artifacts[i])
			}
		}
		w.cleanup(ctx, done)
		return nil, &GenerationError{Kind: FailurePersistence, Err: fmt.Errorf("failed to upload image: %w", err)}
	}
	return artifacts, nil
}

// cleanup removes uploaded objects that will not be referenced by any job. Best-effort.
func (w *GenerationWorker) cleanup(ctx context.Context, artifacts []domain.Artifact) {
	if len(artifacts) == 0 {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	for _, a := range artifacts {
		if err := w.storage.Delete(cleanupCtx, a.StorageKey); err != nil {
			logger.CtxWarn(ctx, "Failed to remove orphaned object: key=%s, error=%v", a.StorageKey, err)
		}
	}
}

// fail records the job as error. A failure to record is logged and not escalated.
func (w *GenerationWorker) fail(ctx context.Context, jobID string, cause error) {
	msg := failureMessage(cause)
	if errors.Is(cause, context.Canceled) {
		msg = MsgGenerationCancelled
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := w.jobs.MarkError(recordCtx, jobID, msg); err != nil {
		logger.CtxError(ctx, "Failed to record job failure: cause=%v, error=%v", cause, err)
		return
	}
	logger.With(logger.Fields{logger.FieldStatus: string(domain.JobStatusError)}).
		Warn(ctx, "Job failed: error_msg=%q, cause=%v", msg, cause)
}
