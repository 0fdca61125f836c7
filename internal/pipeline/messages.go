package pipeline

import (
	"errors"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

// User-facing status messages
const (
	MessageConverted  = "Successfully Converted"
	MessageDownloaded = "Successfully Downloaded"
	MessageCancelled  = "Cancelled"
)

// Failure checklists, one per pipeline
const (
	MessageConvertFail  = "ERROR: 1) Validate your file. 2) Validate your format. 3) Validate your directory. 4) Ensure FFmpeg compatibility"
	MessageDownloadFail = "ERROR: 1) Verify your internet connection. 2) Validate the YouTube URL. 3) Verify application permissions. 4) Retry after completing 1, 2, 3. 5) It may be a bug. Move on."
)

// Validation messages
const (
	MessageSelectFile      = "Select a file"
	MessageSelectFormat    = "Select a format"
	MessageSelectDirectory = "Select a directory"
	MessageTypeLink        = "Type in a link"
	MessageTypeName        = "Type in a name"
	MessageFileExists      = "File already exists: "
	MessageInvalidName     = "File name contains unsupported characters"
	MessageInvalidFormat   = "Unsupported format"
	MessageSameFile        = "Output would overwrite the input file"
	MessageNotWritable     = "Directory is not writable"
	MessageBusy            = "A job is already running"
)

// ValidationMessage maps a validation fault to its status text.
func ValidationMessage(err error) string {
	var jobErr *model.JobError
	path := ""
	if errors.As(err, &jobErr) {
		path = jobErr.Path
	}

	switch {
	case errors.Is(err, model.ErrMissingInput):
		return MessageSelectFile
	case errors.Is(err, model.ErrMissingFormat):
		return MessageSelectFormat
	case errors.Is(err, model.ErrMissingDirectory):
		return MessageSelectDirectory
	case errors.Is(err, model.ErrMissingURL):
		return MessageTypeLink
	case errors.Is(err, model.ErrMissingName):
		return MessageTypeName
	case errors.Is(err, model.ErrOutputExists):
		return MessageFileExists + path
	case errors.Is(err, model.ErrInvalidName):
		return MessageInvalidName
	case errors.Is(err, model.ErrInvalidFormat):
		if path != "" {
			return MessageInvalidFormat + ": " + path
		}
		return MessageInvalidFormat
	case errors.Is(err, model.ErrSameInputOutput):
		return MessageSameFile
	case errors.Is(err, model.ErrNotWritable):
		return MessageNotWritable
	default:
		return err.Error()
	}
}
