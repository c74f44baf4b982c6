package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the generation job ID
	FieldJobID = "job_id"

	// FieldUserID is the job owner / caller
	FieldUserID = "user_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldTask is the background task name
	FieldTask = "task"
)

// ============================================
// Standard Metric Fields (Entry level)
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is an HTTP status code or job status
	FieldStatus = "status"
)
