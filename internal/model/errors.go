package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a job failed. The user-facing message stays
// generic per pipeline; the kind is kept for logs, history and tests.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindProbeParse    ErrorKind = "probe_parse"
	ErrorKindProcessFailed ErrorKind = "process_failed"
	ErrorKindEngineFailed  ErrorKind = "engine_failed"
	ErrorKindMissingOutput ErrorKind = "io_missing_output"
	ErrorKindCancelled     ErrorKind = "cancelled"
	ErrorKindInternal      ErrorKind = "internal"
)

// Validation faults. These are detected before a job starts.
var (
	ErrMissingInput     = errors.New("input file is required")
	ErrMissingFormat    = errors.New("output format is required")
	ErrMissingDirectory = errors.New("output directory is required")
	ErrMissingURL       = errors.New("url is required")
	ErrMissingName      = errors.New("file name is required")
	ErrInvalidName      = errors.New("file name contains unsupported characters")
	ErrInvalidFormat    = errors.New("output format contains unsupported characters")
	ErrOutputExists     = errors.New("output file already exists")
	ErrSameInputOutput  = errors.New("output file would overwrite the input file")
	ErrNotWritable      = errors.New("output directory is not writable")
)

// JobError is a kind-aware error with the failed operation and the path it
// concerned, if any.
type JobError struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

// NewJobError wraps err with a kind and operation name.
func NewJobError(kind ErrorKind, op string, err error) *JobError {
	return &JobError{Kind: kind, Op: op, Err: err}
}

// Error formats job failures for logs.
func (e *JobError) Error() string {
	if e == nil {
		return ""
	}

	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf classifies err. A nil error has no kind, context cancellation maps to
// ErrorKindCancelled, and anything unclassified is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var jobErr *JobError
	if errors.As(err, &jobErr) && jobErr.Kind != ErrorKindNone {
		return jobErr.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindCancelled
	}

	return ErrorKindInternal
}

// validationError wraps one of the validation sentinels.
func validationError(err error, path string) *JobError {
	return &JobError{Kind: ErrorKindValidation, Op: "validate", Path: path, Err: err}
}
