package uploader

import (
	"errors"
	"fmt"

	"github.com/abduss/crmassets/internal/upload"
)

// State is the client-observed readiness of the storage backend.
type State string

const (
	StateUnknown  State = "unknown"
	StateChecking State = "checking"
	StateReady    State = "ready"
	StateError    State = "error"
)

// transitions lists the legal moves; unknown can only leave through checking.
var transitions = map[State][]State{
	StateUnknown:  {StateChecking},
	StateChecking: {StateReady, StateError},
	StateReady:    {StateChecking},
	StateError:    {StateChecking},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Rejection reasons returned by SelectFile.
const (
	ReasonStorageNotReady = "StorageNotReady"
	ReasonUnsupportedType = "UnsupportedType"
	ReasonTooLarge        = "TooLarge"
	ReasonBusy            = "Busy"
)

// ErrorKind classifies a failed ConfirmUpload.
type ErrorKind string

const (
	KindMissingEntityID   ErrorKind = "MissingEntityId"
	KindNoFile            ErrorKind = "NoFile"
	KindBusy              ErrorKind = "Busy"
	KindNotReady          ErrorKind = "NotReady"
	KindUnknownKind       ErrorKind = "UnknownKind"
	KindPermission        ErrorKind = "PermissionError"
	KindContainerNotFound ErrorKind = "ContainerNotFound"
	KindUploadFailed      ErrorKind = "UploadFailed"
	KindCancelled         ErrorKind = "Cancelled"
)

// Error is returned by ConfirmUpload with a short user-facing message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is the readiness view returned by probe and auto-fix actions.
type Status struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Selection is the answer to a file selection.
type Selection struct {
	Accepted        bool   `json:"accepted"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Outcome is the result of a successful ConfirmUpload.
type Outcome struct {
	AssetURL string             `json:"asset_url"`
	Asset    upload.StoredAsset `json:"asset"`
}

// CandidateView is the renderable part of the selected file.
type CandidateView struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Preview     string `json:"preview"`
}

// Snapshot is everything a rendering layer needs to draw the uploader.
type Snapshot struct {
	State     State          `json:"state"`
	Error     string         `json:"error,omitempty"`
	Missing   []string       `json:"missing,omitempty"`
	Target    upload.Target  `json:"target"`
	CanSelect bool           `json:"can_select"`
	Uploading bool           `json:"uploading"`
	Candidate *CandidateView `json:"candidate,omitempty"`
	AssetURL  string         `json:"asset_url,omitempty"`
	Preview   bool           `json:"preview_mode"`
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return ReasonTooLarge
	case errors.Is(err, upload.ErrUnsupportedType):
		return ReasonUnsupportedType
	}
	return ReasonUnsupportedType
}

func uploadError(err error) *Error {
	kind := KindUploadFailed
	switch {
	case errors.Is(err, upload.ErrMissingEntityID):
		kind = KindMissingEntityID
	case errors.Is(err, upload.ErrUnknownKind):
		kind = KindUnknownKind
	case errors.Is(err, upload.ErrPermission):
		kind = KindPermission
	case errors.Is(err, upload.ErrContainerNotFound):
		kind = KindContainerNotFound
	}

	message := err.Error()
	var failure *upload.Failure
	if errors.As(err, &failure) {
		message = failure.Hint
		if kind == KindUploadFailed && failure.Message != "" {
			message = fmt.Sprintf("%s (%s)", failure.Hint, failure.Message)
		}
	}
	return &Error{Kind: kind, Message: message, Err: err}
}
