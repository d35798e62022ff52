package uploader

import (
	"errors"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrSessionNotFound is returned for unknown or evicted session ids.
var ErrSessionNotFound = errors.New("upload session not found")

// DefaultRegistrySize bounds the number of live sessions.
const DefaultRegistrySize = 256

// Factory builds the Machine backing a new session.
type Factory func(opts Options) *Machine

// Registry keeps recently used upload sessions. The least recently used
// session is evicted once the registry is full.
type Registry struct {
	cache   *lru.Cache[string, *Machine]
	factory Factory
}

// NewRegistry constructs a Registry holding up to size sessions.
func NewRegistry(size int, factory Factory) (*Registry, error) {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	cache, err := lru.New[string, *Machine](size)
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache, factory: factory}, nil
}

// Create starts a session and returns its id.
func (r *Registry) Create(opts Options) (string, *Machine) {
	id := uuid.NewString()
	m := r.factory(opts)
	r.cache.Add(id, m)
	return id, m
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Machine, error) {
	m, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m, nil
}

// Remove drops a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	return r.cache.Remove(id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}
