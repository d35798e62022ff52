package bucket

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/storage"
	"go.uber.org/zap"
)

const probeContext = "storage-probe"

type probeStore interface {
	ListContainers(ctx context.Context) ([]string, error)
	PutObject(ctx context.Context, container, path string, reader io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, container, path string) error
}

// Prober checks that the storage backend is reachable and fully provisioned.
type Prober struct {
	store      probeStore
	required   []string
	writeCheck bool
	diag       *diagnostics.Log
	logger     *zap.Logger
	nowFunc    func() time.Time
}

// ProberOption customizes a Prober.
type ProberOption func(*Prober)

// WithWriteCheck toggles the disposable write/delete permission check.
func WithWriteCheck(enabled bool) ProberOption {
	return func(p *Prober) { p.writeCheck = enabled }
}

// WithProberLogger sets the operator logger.
func WithProberLogger(logger *zap.Logger) ProberOption {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProber constructs a Prober for the required container names.
func NewProber(store probeStore, required []string, diag *diagnostics.Log, opts ...ProberOption) *Prober {
	if diag == nil {
		diag = diagnostics.New(diagnostics.DefaultCapacity)
	}
	p := &Prober{
		store:      store,
		required:   append([]string(nil), required...),
		writeCheck: true,
		diag:       diag,
		logger:     zap.NewNop(),
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe lists containers, diffs them against the required set, then optionally
// validates write permission. Only connectivity, missing containers and an
// explicit access denial make the result not ready.
func (p *Prober) Probe(ctx context.Context) Result {
	p.diag.Append(probeContext, "listing storage buckets", map[string]any{"required": p.required})

	names, err := p.store.ListContainers(ctx)
	if err != nil {
		p.diag.Append(probeContext, "bucket listing failed", map[string]any{
			"code":  string(storage.CodeOf(err)),
			"error": err.Error(),
		})
		p.logger.Warn("storage probe: list buckets", zap.Error(err))
		return Result{Err: connectivityError(storage.MessageOf(err))}
	}

	missing := difference(p.required, names)
	if len(missing) > 0 {
		p.diag.Append(probeContext, "required buckets missing", map[string]any{"missing": missing, "found": names})
		return Result{Missing: missing, Err: missingError(missing)}
	}

	if p.writeCheck && len(p.required) > 0 {
		if perr := p.checkWrite(ctx, p.required[0]); perr != nil {
			return Result{Err: perr}
		}
	}

	p.diag.Append(probeContext, "storage ready", nil)
	return Result{Ready: true}
}

func (p *Prober) checkWrite(ctx context.Context, container string) *ProbeError {
	path := fmt.Sprintf(".probe/%d.txt", p.nowFunc().UnixNano())
	body := "probe"

	err := p.store.PutObject(ctx, container, path, strings.NewReader(body), int64(len(body)), "text/plain")
	if err != nil {
		if storage.CodeOf(err) == storage.CodeAccessDenied {
			p.diag.Append(probeContext, "write check denied", map[string]any{"container": container, "error": err.Error()})
			return permissionError(container, storage.MessageOf(err))
		}
		// the real upload re-validates permissions, so anything else is advisory
		p.diag.Append(probeContext, "write check inconclusive", map[string]any{"container": container, "error": err.Error()})
		p.logger.Warn("storage probe: write check", zap.String("container", container), zap.Error(err))
		return nil
	}

	if err := p.store.RemoveObject(ctx, container, path); err != nil {
		p.diag.Append(probeContext, "write check cleanup failed", map[string]any{"container": container, "path": path, "error": err.Error()})
		p.logger.Warn("storage probe: remove probe object", zap.String("path", path), zap.Error(err))
	}
	return nil
}

func difference(required, present []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, name := range present {
		have[name] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
