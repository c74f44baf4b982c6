package domain

import "time"

// JobStatus is the lifecycle state of a generation job.
// The set is closed: pending, processing, complete, error.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// validTransitions lists the states each status may move to. Terminal states have none.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusError},
	JobStatusProcessing: {JobStatusComplete, JobStatusError},
}

// IsValid reports whether s is one of the known statuses.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusComplete, JobStatusError:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// CanTransition reports whether moving from s to next is a forward step.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Predecessors returns the statuses from which target can be reached in one step.
func Predecessors(target JobStatus) []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobStatusPending, JobStatusProcessing} {
		if from.CanTransition(target) {
			out = append(out, from)
		}
	}
	return out
}

// Job is one prompt-to-image generation request.
// ResultURL is set exactly when Status is complete; ErrorMsg exactly when Status is error.
type Job struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index:idx_jobs_user_created,priority:1" json:"user_id"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Status    JobStatus `gorm:"type:text;not null;default:pending;index" json:"status"`
	ResultURL *string   `gorm:"type:text" json:"result_url"`
	ErrorMsg  *string   `gorm:"type:text" json:"error_msg"`
	CreatedAt time.Time `gorm:"index:idx_jobs_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}
