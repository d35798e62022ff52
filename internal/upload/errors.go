package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType rejects files whose declared MIME type is not an allowed image type.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge rejects files above the configured size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrMissingEntityID is returned when an upload has no owner to attach to.
	ErrMissingEntityID = errors.New("missing entity id")
	// ErrUnknownKind signals an unsupported target kind.
	ErrUnknownKind = errors.New("unknown target kind")
	// ErrPermission indicates the storage backend denied the write.
	ErrPermission = errors.New("storage permission denied")
	// ErrContainerNotFound indicates the target bucket does not exist.
	ErrContainerNotFound = errors.New("storage container not found")
	// ErrUploadFailed covers every other write failure.
	ErrUploadFailed = errors.New("upload failed")
)

// ValidationError describes why a candidate file was rejected.
type ValidationError struct {
	Err         error
	ContentType string
	LimitMiB    int64
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrTooLarge):
		return fmt.Sprintf("File is too large. Maximum size is %dMB.", e.LimitMiB)
	case errors.Is(e.Err, ErrUnsupportedType):
		return fmt.Sprintf("Unsupported file type %q. Please select a PNG, JPEG or WEBP image.", e.ContentType)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Failure is a classified upload error with a user-facing remediation hint.
type Failure struct {
	Err     error
	Message string
	Hint    string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Err.Error()
	}
	return fmt.Sprintf("%s: %s", f.Err, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
