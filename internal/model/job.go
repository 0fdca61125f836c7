package model

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DownloadOutputFormat is the fixed extension of every downloaded audio file
const DownloadOutputFormat = "flac"

// fileNamePattern restricts download file names to a conservative character set
var fileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _\-\.\+\=\(\)\{\}\[\]#&^!]*$`)

// Job represents one user-triggered unit of conversion or download work
type Job struct {
	ID         string
	Kind       JobKind
	Target     string // output path the job must produce
	Status     JobStatus
	Progress   int // 0 to 100
	StartedAt  time.Time
	FinishedAt time.Time
	ErrorKind  ErrorKind
	LastError  string
}

// Outcome is the terminal signal for a job, delivered exactly once.
type Outcome struct {
	JobID    string
	Kind     JobKind
	Success  bool
	Err      error
	Started  time.Time
	Finished time.Time
}

// ErrorKind returns the failure classification, or ErrorKindNone on success
func (o Outcome) ErrorKind() ErrorKind {
	if o.Success {
		return ErrorKindNone
	}
	return KindOf(o.Err)
}

// Duration returns how long the job ran
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// ConversionRequest asks for InputPath to be transcoded into OutputFormat
// inside OutputDirectory.
type ConversionRequest struct {
	InputPath       string `json:"input_path"`
	OutputDirectory string `json:"output_directory"`
	OutputFormat    string `json:"output_format"`
}

// OutputPath derives the output file path: the input base name with the new
// extension, placed in OutputDirectory, using forward slashes.
func (r ConversionRequest) OutputPath() string {
	base := filepath.Base(r.InputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.ToSlash(filepath.Join(r.OutputDirectory, name+"."+r.OutputFormat))
}

// Validate checks the request against the filesystem. All returned errors are
// validation faults.
func (r ConversionRequest) Validate() error {
	if strings.TrimSpace(r.InputPath) == "" {
		return validationError(ErrMissingInput, "")
	}
	info, err := os.Stat(r.InputPath)
	if err != nil || info.IsDir() {
		return validationError(ErrMissingInput, r.InputPath)
	}

	format := strings.TrimSpace(r.OutputFormat)
	if format == "" {
		return validationError(ErrMissingFormat, "")
	}
	if strings.ContainsAny(format, `/\`) || format != r.OutputFormat {
		return validationError(ErrInvalidFormat, r.OutputFormat)
	}

	if err := validateDirectory(r.OutputDirectory); err != nil {
		return err
	}

	if samePath(r.InputPath, r.OutputPath()) {
		return validationError(ErrSameInputOutput, r.OutputPath())
	}

	return nil
}

// DownloadRequest asks for the audio track of URL to be saved as
// OutputDirectory/FileName.flac.
type DownloadRequest struct {
	URL             string `json:"url"`
	OutputDirectory string `json:"output_directory"`
	FileName        string `json:"file_name"`
}

// BasePath returns the target path without extension, using forward slashes.
func (r DownloadRequest) BasePath() string {
	return path.Join(filepath.ToSlash(r.OutputDirectory), r.FileName)
}

// TargetPath returns the final audio file path.
func (r DownloadRequest) TargetPath() string {
	return r.BasePath() + "." + DownloadOutputFormat
}

// Validate checks the request and performs the pre-flight collision check.
// An existing target is reported with ErrOutputExists and left untouched.
func (r DownloadRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return validationError(ErrMissingURL, "")
	}
	if err := validateDirectory(r.OutputDirectory); err != nil {
		return err
	}
	if strings.TrimSpace(r.FileName) == "" {
		return validationError(ErrMissingName, "")
	}
	if !fileNamePattern.MatchString(r.FileName) || r.FileName == "." || r.FileName == ".." {
		return validationError(ErrInvalidName, r.FileName)
	}

	target := r.TargetPath()
	if _, err := os.Stat(target); err == nil {
		return validationError(ErrOutputExists, target)
	}

	return nil
}

// validateDirectory requires an existing, writable directory.
func validateDirectory(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return validationError(ErrMissingDirectory, "")
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return validationError(ErrMissingDirectory, dir)
	}

	probe, err := os.CreateTemp(dir, ".audiomorph-*")
	if err != nil {
		return validationError(ErrNotWritable, dir)
	}
	probe.Close()
	os.Remove(probe.Name())

	return nil
}

// samePath reports whether two paths refer to the same file location
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
