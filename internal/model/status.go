package model

// JobStatus represents the lifecycle state of a conversion or download job
type JobStatus string

const (
	// JobStatusPending means no job is in flight; the pipeline accepts a trigger
	JobStatusPending JobStatus = "Pending"

	// JobStatusRunning means the job is executing on its background goroutine
	JobStatusRunning JobStatus = "Running"

	// JobStatusSucceeded means the job finished and its output file exists
	JobStatusSucceeded JobStatus = "Succeeded"

	// JobStatusFailed means the job ended with an error
	JobStatusFailed JobStatus = "Failed"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsActive returns true if the job is currently executing
func (s JobStatus) IsActive() bool {
	return s == JobStatusRunning
}

// IsFinished returns true if the job reached a terminal state
func (s JobStatus) IsFinished() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// JobKind identifies which pipeline owns a job
type JobKind string

const (
	JobKindConversion JobKind = "conversion"
	JobKindDownload   JobKind = "download"
)

// String returns the string representation of JobKind
func (k JobKind) String() string {
	return string(k)
}
