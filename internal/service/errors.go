package service

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a generation job ended in error.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureUpstream    FailureKind = "upstream"
	FailurePersistence FailureKind = "persistence"
	FailureInternal    FailureKind = "internal"
)

const (
	MsgGenerationTimedOut  = "Image generation timed out"
	MsgPersistenceFailed   = "Failed to save the generated image"
	MsgInternalFailure     = "Unexpected error during image generation"
	MsgGenerationCancelled = "Image generation was cancelled"
	MsgStaleJob            = "Image generation did not finish"
	MsgServiceShuttingDown = "Service is shutting down"
)

// GenerationError is a worker failure together with its classification.
type GenerationError struct {
	Kind FailureKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Message returns the text stored as the job's error_msg.
func (e *GenerationError) Message() string {
	switch e.Kind {
	case FailureTimeout:
		return MsgGenerationTimedOut
	case FailureUpstream:
		var upstream *UpstreamError
		if errors.As(e.Err, &upstream) {
			return upstream.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return "Image generation failed"
	case FailurePersistence:
		return MsgPersistenceFailed
	default:
		return MsgInternalFailure
	}
}

// UpstreamError is an error reported by the image generation API.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return "image API error: " + e.Message
	}
	return fmt.Sprintf("image API returned HTTP %d: %s", e.StatusCode, e.Message)
}

// failureMessage maps any worker error to a user-visible message.
func failureMessage(err error) string {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Message()
	}
	return MsgInternalFailure
}
