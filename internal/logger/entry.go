package logger

import (
	"context"
	"time"
)

// Entry carries aggregatable metric fields (duration_ms, count, size, status).
// Example: logger.With(logger.Fields{"duration_ms": 1234}).Info(ctx, "Upload finished")
type Entry struct {
	fields Fields
}

// With creates a new Entry with the given metric fields.
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// With adds more fields to an existing Entry.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// WithDuration adds a duration_ms field measured from start.
func (e *Entry) WithDuration(start time.Time) *Entry {
	return e.With(Fields{FieldDurationMs: time.Since(start).Milliseconds()})
}

func (e *Entry) WithCount(count int) *Entry {
	return e.With(Fields{FieldCount: count})
}

func (e *Entry) WithSize(size int) *Entry {
	return e.With(Fields{FieldSize: size})
}

func (e *Entry) WithStatus(status string) *Entry {
	return e.With(Fields{FieldStatus: status})
}

func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Debugf(format, args...)
}

func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Infof(format, args...)
}

func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Warnf(format, args...)
}

func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).WithFields(e.fields).Errorf(format, args...)
}
