package storage

import (
	"errors"
	"fmt"
)

// Code is a stable classification of object storage failures.
type Code string

const (
	CodeUnknown      Code = "unknown"
	CodeUnreachable  Code = "unreachable"
	CodeAccessDenied Code = "access_denied"
	CodeNoSuchBucket Code = "no_such_bucket"
	CodeBucketExists Code = "bucket_exists"
)

// Error is returned by every backend operation that fails.
type Error struct {
	Op      string
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the classification of err. Errors not produced by this package are CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

// MessageOf returns the backend message carried by err, or err.Error() for foreign errors.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
