package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrEmptyPrompt       = errors.New("prompt is required")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobNotComplete    = errors.New("job is not complete")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)
