package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/storage"
	"go.uber.org/zap"
)

const diagContext = "upload"

type objectStore interface {
	PutObject(ctx context.Context, container, path string, reader io.Reader, size int64, contentType string) error
	PublicURL(container, path string) string
}

// ReachabilityChecker reports the HTTP status of a public URL.
type ReachabilityChecker interface {
	Check(ctx context.Context, url string) (int, error)
}

// Executor writes validated files to object storage and resolves their public URL.
type Executor struct {
	store      objectStore
	containers Containers
	diag       *diagnostics.Log
	checker    ReachabilityChecker
	logger     *zap.Logger
	nowFunc    func() time.Time

	mu         sync.Mutex
	lastMillis int64
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithReachabilityCheck enables the best-effort HEAD check of resolved URLs.
func WithReachabilityCheck(checker ReachabilityChecker) ExecutorOption {
	return func(e *Executor) { e.checker = checker }
}

// WithExecutorLogger sets the operator logger.
func WithExecutorLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithExecutorClock overrides the timestamp source used in object paths.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.nowFunc = now }
}

// NewExecutor constructs an Executor writing to the given containers.
func NewExecutor(store objectStore, containers Containers, diag *diagnostics.Log, opts ...ExecutorOption) *Executor {
	if diag == nil {
		diag = diagnostics.New(diagnostics.DefaultCapacity)
	}
	e := &Executor{
		store:      store,
		containers: containers,
		diag:       diag,
		logger:     zap.NewNop(),
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Upload stores file for target. The file must already have passed Validator.
func (e *Executor) Upload(ctx context.Context, file CandidateFile, target Target) (StoredAsset, error) {
	if strings.TrimSpace(target.EntityID) == "" {
		e.diag.Append(diagContext, "upload refused: missing entity id", map[string]any{"kind": target.Kind})
		return StoredAsset{}, ErrMissingEntityID
	}
	container, ok := e.containers[target.Kind]
	if !target.Kind.Valid() || !ok {
		return StoredAsset{}, fmt.Errorf("%w: %q", ErrUnknownKind, target.Kind)
	}

	uploadedAt := e.nextTimestamp()
	objectPath := ObjectPath(target, file, uploadedAt)

	e.diag.Append(diagContext, "uploading file", map[string]any{
		"container":    container,
		"path":         objectPath,
		"size":         len(file.Data),
		"content_type": file.ContentType,
	})

	if err := e.store.PutObject(ctx, container, objectPath, bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType); err != nil {
		failure := classifyFailure(err, container)
		e.diag.Append(diagContext, "upload failed", map[string]any{
			"container": container,
			"path":      objectPath,
			"error":     failure.Err.Error(),
			"code":      string(storage.CodeOf(err)),
			"message":   failure.Message,
			"hint":      failure.Hint,
		})
		e.logger.Warn("upload failed",
			zap.String("container", container),
			zap.String("path", objectPath),
			zap.Error(err),
		)
		return StoredAsset{}, failure
	}

	asset := StoredAsset{
		Container:   container,
		Path:        objectPath,
		URL:         e.store.PublicURL(container, objectPath),
		ContentType: file.ContentType,
		Size:        int64(len(file.Data)),
		UploadedAt:  uploadedAt,
	}
	e.diag.Append(diagContext, "upload stored", map[string]any{"path": objectPath, "url": asset.URL})

	e.verify(ctx, asset.URL)
	return asset, nil
}

// verify never fails the upload: the write acknowledgement is what counts.
func (e *Executor) verify(ctx context.Context, url string) {
	if e.checker == nil {
		return
	}
	status, err := e.checker.Check(ctx, url)
	switch {
	case err != nil:
		e.diag.Append(diagContext, "public url check failed", map[string]any{"url": url, "error": err.Error()})
		e.logger.Warn("public url check failed", zap.String("url", url), zap.Error(err))
	case status < 200 || status > 299:
		e.diag.Append(diagContext, "public url not reachable", map[string]any{"url": url, "status": status})
		e.logger.Warn("public url not reachable", zap.String("url", url), zap.Int("status", status))
	default:
		e.diag.Append(diagContext, "public url verified", map[string]any{"url": url, "status": status})
	}
}

// nextTimestamp returns a time whose millisecond value is strictly greater than the previous call's.
func (e *Executor) nextTimestamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowFunc()
	ms := now.UnixMilli()
	if ms <= e.lastMillis {
		ms = e.lastMillis + 1
		now = time.UnixMilli(ms)
	}
	e.lastMillis = ms
	return now
}

// ObjectPath derives {entityId}/{prefix}-{unixMillis}.{ext} for an upload at t.
func ObjectPath(target Target, file CandidateFile, t time.Time) string {
	return fmt.Sprintf("%s/%s-%d.%s", target.EntityID, target.Kind.Prefix(), t.UnixMilli(), extension(file.Name, file.ContentType))
}

func extension(name, contentType string) string {
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")); ext != "" {
		return ext
	}
	switch normalizeType(contentType) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	}
	return "bin"
}

func classifyFailure(err error, container string) *Failure {
	message := storage.MessageOf(err)
	switch storage.CodeOf(err) {
	case storage.CodeAccessDenied:
		return &Failure{
			Err:     ErrPermission,
			Message: message,
			Hint:    "Storage rejected the upload. Check that the bucket policy allows writes for this account.",
		}
	case storage.CodeNoSuchBucket:
		return &Failure{
			Err:     ErrContainerNotFound,
			Message: message,
			Hint:    fmt.Sprintf("Bucket %q does not exist. Run auto-fix to create the storage buckets.", container),
		}
	default:
		return &Failure{
			Err:     ErrUploadFailed,
			Message: message,
			Hint:    "Upload failed. Try again, and export the diagnostics log if it keeps failing.",
		}
	}
}
