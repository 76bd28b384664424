package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusTimedOut  JobStatus = "TIMED_OUT"
)

// Terminal reports whether the status admits no further transitions.
// TimedOut is synthesized locally; providers never report it.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut:
		return true
	}
	return false
}

// GenerationJob is the in-memory record of a single submitted job. It lives
// only for the duration of one request and is never persisted.
type GenerationJob struct {
	TaskID        string // our correlation id (ulid)
	Provider      string
	ExternalID    string // provider-assigned task id
	Status        JobStatus
	Progress      float64 // valid only when HasProgress
	HasProgress   bool
	OutputURL     string // set only when Succeeded
	FailureReason string // set only when Failed
	CostUnits     int64  // fixed at submission time
	Attempts      int    // polls performed
	SubmittedAt   time.Time
}
