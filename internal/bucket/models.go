package bucket

import (
	"errors"

	"github.com/abduss/crmassets/internal/storage"
)

// Spec declares a required container and the constraints it is provisioned with.
type Spec struct {
	Name           string
	Public         bool
	MaxObjectBytes int64
	AllowedTypes   []string
}

func (s Spec) containerSpec() storage.ContainerSpec {
	return storage.ContainerSpec{
		Name:           s.Name,
		Public:         s.Public,
		MaxObjectBytes: s.MaxObjectBytes,
		AllowedTypes:   s.AllowedTypes,
	}
}

// RequiredSpecs builds public-read specs for the named containers.
func RequiredSpecs(names []string, maxObjectBytes int64, allowedTypes []string) []Spec {
	specs := make([]Spec, 0, len(names))
	for _, name := range names {
		specs = append(specs, Spec{
			Name:           name,
			Public:         true,
			MaxObjectBytes: maxObjectBytes,
			AllowedTypes:   append([]string(nil), allowedTypes...),
		})
	}
	return specs
}

// Result is the outcome of a readiness probe.
type Result struct {
	Ready   bool
	Missing []string
	Err     error
}

// Message returns the user-facing error text, or "" when ready.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report summarizes a provisioning pass. It is not authoritative; re-probe for ground truth.
type Report struct {
	Created  []string
	Existing []string
	Failed   map[string]error
}

// Err joins per-container failures, or returns nil when none occurred.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, err := range r.Failed {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
