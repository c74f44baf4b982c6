package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "test"})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	return out
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	ctx = SetRequestID(ctx, "req-1")
	ctx = SetJobID(ctx, "job-1")
	ctx = SetUserID(ctx, "user-1")

	CtxInfo(ctx, "hello %s", "world")

	line := decodeLine(t, &buf)
	assert.Equal(t, "hello world", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "test", line["service"])
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.Equal(t, "job-1", line[FieldJobID])
	assert.Equal(t, "user-1", line[FieldUserID])
	assert.Contains(t, line, "timestamp")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "job-1", GetJobID(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Same(t, GetDefault(), FromContext(nil))
}

func TestEntryMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	With(Fields{FieldStatus: 202}).WithCount(3).WithSize(512).Info(ctx, "done")

	line := decodeLine(t, &buf)
	assert.EqualValues(t, 202, line[FieldStatus])
	assert.EqualValues(t, 3, line[FieldCount])
	assert.EqualValues(t, 512, line[FieldSize])
}

func TestTextFormatAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Format: "text", Output: &buf, ServiceName: "test"})
	ctx := l.WithContext(context.Background())

	CtxInfo(ctx, "hidden")
	assert.Empty(t, buf.String())

	CtxWarn(ctx, "shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "file=")
}
