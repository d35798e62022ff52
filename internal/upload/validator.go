package upload

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the default upload size limit (5 MiB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// AllowedTypes is the image MIME allow-list shared by validation and bucket provisioning.
var AllowedTypes = []string{"image/png", "image/jpeg", "image/jpg", "image/webp"}

// Validator checks candidate files before any I/O happens.
type Validator struct {
	maxBytes int64
}

// NewValidator returns a Validator enforcing maxBytes. Non-positive values use DefaultMaxBytes.
func NewValidator(maxBytes int64) Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return Validator{maxBytes: maxBytes}
}

// MaxBytes returns the enforced size limit.
func (v Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate rejects oversize files first, then files whose declared type is not allowed.
func (v Validator) Validate(file CandidateFile) error {
	if file.Size > v.maxBytes {
		return &ValidationError{Err: ErrTooLarge, ContentType: file.ContentType, LimitMiB: v.maxBytes / (1024 * 1024)}
	}
	if !IsAllowedType(file.ContentType) {
		return &ValidationError{Err: ErrUnsupportedType, ContentType: file.ContentType, LimitMiB: v.maxBytes / (1024 * 1024)}
	}
	return nil
}

// IsAllowedType reports whether a declared MIME type is on the allow-list.
func IsAllowedType(contentType string) bool {
	normalized := normalizeType(contentType)
	for _, allowed := range AllowedTypes {
		if normalized == allowed {
			return true
		}
	}
	return false
}

// Sniff detects the content type of data from its leading bytes.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// SameImageType reports whether a declared and a sniffed type name the same format.
func SameImageType(declared, sniffed string) bool {
	d, s := normalizeType(declared), normalizeType(sniffed)
	if d == "image/jpg" {
		d = "image/jpeg"
	}
	return d == s
}

func normalizeType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(contentType)
}
