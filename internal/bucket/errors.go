package bucket

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectivity indicates the storage service could not be reached or listed.
	ErrConnectivity = errors.New("storage unreachable")
	// ErrMissingContainers indicates required buckets are not configured.
	ErrMissingContainers = errors.New("missing storage buckets")
	// ErrPermissionDenied indicates the credentials cannot write to the buckets.
	ErrPermissionDenied = errors.New("storage permission denied")
	// ErrProvisioning indicates automatic bucket creation left buckets missing.
	ErrProvisioning = errors.New("bucket provisioning failed")
)

// ProbeError carries a remediation-specific message for a failed probe.
type ProbeError struct {
	Err     error
	Message string
	Missing []string
}

func (e *ProbeError) Error() string {
	return e.Message
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func connectivityError(message string) *ProbeError {
	return &ProbeError{
		Err:     ErrConnectivity,
		Message: fmt.Sprintf("Cannot access storage service: %s", message),
	}
}

func missingError(missing []string) *ProbeError {
	return &ProbeError{
		Err:     ErrMissingContainers,
		Message: fmt.Sprintf("Storage is not configured. Missing buckets: %s. Use auto-fix to create them.", strings.Join(missing, ", ")),
		Missing: missing,
	}
}

func permissionError(container, message string) *ProbeError {
	return &ProbeError{
		Err: ErrPermissionDenied,
		Message: fmt.Sprintf("Storage permissions prevent uploads to %q (%s). Grant write access in the bucket policy, then retry.",
			container, message),
	}
}

// ProvisioningError reports buckets still missing after an auto-fix attempt.
func ProvisioningError(missing []string) *ProbeError {
	return &ProbeError{
		Err: ErrProvisioning,
		Message: fmt.Sprintf("Automatic setup could not create buckets: %s. Create them manually or check the storage credentials.",
			strings.Join(missing, ", ")),
		Missing: missing,
	}
}
