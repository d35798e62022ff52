package record

import "errors"

var (
	// ErrEntityNotFound indicates no record carries the external identifier.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrSyncFailed wraps any other failure to write the asset reference.
	ErrSyncFailed = errors.New("record sync failed")
)
