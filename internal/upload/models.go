package upload

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Kind identifies what an uploaded asset belongs to.
type Kind string

const (
	KindUser    Kind = "user"
	KindContact Kind = "contact"
	KindCompany Kind = "company"
)

// Kinds lists every supported target kind.
var Kinds = []Kind{KindUser, KindContact, KindCompany}

// ParseKind validates a raw kind value.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return k, nil
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindContact, KindCompany:
		return true
	}
	return false
}

// Prefix is the semantic file-name prefix for objects of this kind.
func (k Kind) Prefix() string {
	switch k {
	case KindUser:
		return "profile"
	case KindContact:
		return "photo"
	case KindCompany:
		return "logo"
	}
	return ""
}

// Target is the owner an asset is attached to. EntityID is the external identifier and may be empty.
type Target struct {
	Kind     Kind   `json:"kind"`
	EntityID string `json:"entity_id,omitempty"`
}

// Containers maps each kind to the bucket holding its assets.
type Containers map[Kind]string

// Names returns the container names in Kinds order.
func (c Containers) Names() []string {
	names := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		if name, ok := c[k]; ok {
			names = append(names, name)
		}
	}
	return names
}

// CandidateFile holds user-selected bytes pending validation and upload.
type CandidateFile struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
	// Preview is a data URL rendering of Data for the UI.
	Preview string
}

// NewCandidateFile builds a candidate with its preview data URL.
func NewCandidateFile(name, contentType string, size int64, data []byte) CandidateFile {
	return CandidateFile{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Data:        data,
		Preview:     fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)),
	}
}

// StoredAsset is the durable result of an upload.
type StoredAsset struct {
	Container   string    `json:"container"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
