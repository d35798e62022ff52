package uploader

import (
	"context"
	"io"
	"time"

	"github.com/abduss/crmassets/internal/bucket"
	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/record"
	"github.com/abduss/crmassets/internal/storage"
	"github.com/abduss/crmassets/internal/upload"
	"go.uber.org/zap"
)

// StorageBackend is everything the pipeline needs from object storage.
type StorageBackend interface {
	ListContainers(ctx context.Context) ([]string, error)
	CreateContainer(ctx context.Context, spec storage.ContainerSpec) error
	PutObject(ctx context.Context, container, path string, reader io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, container, path string) error
	PublicURL(container, path string) string
}

// RecordStore is the user record persistence used for URL synchronization.
type RecordStore interface {
	FindByExternalID(ctx context.Context, externalID string) (record.Record, error)
	UpdateAssetURL(ctx context.Context, externalID, assetURL string, updatedAt time.Time) (record.Record, error)
}

// Pipeline holds the long-lived wiring and builds one Machine per upload target.
type Pipeline struct {
	Storage    StorageBackend
	Records    RecordStore
	Containers upload.Containers
	MaxBytes   int64
	WriteCheck bool
	Checker    upload.ReachabilityChecker
	Logger     *zap.Logger
}

// NewMachine builds the components for one target around diag and returns its Machine.
func (p Pipeline) NewMachine(diag *diagnostics.Log, opts Options) *Machine {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	names := p.Containers.Names()
	validator := upload.NewValidator(p.MaxBytes)

	execOpts := []upload.ExecutorOption{upload.WithExecutorLogger(logger)}
	if p.Checker != nil {
		execOpts = append(execOpts, upload.WithReachabilityCheck(p.Checker))
	}

	deps := Dependencies{
		Prober: bucket.NewProber(p.Storage, names, diag,
			bucket.WithWriteCheck(p.WriteCheck),
			bucket.WithProberLogger(logger),
		),
		Provisioner: bucket.NewProvisioner(p.Storage,
			bucket.RequiredSpecs(names, validator.MaxBytes(), upload.AllowedTypes), diag, logger),
		Validator:   validator,
		Executor:    upload.NewExecutor(p.Storage, p.Containers, diag, execOpts...),
		Diagnostics: diag,
		Logger:      logger,
	}
	if p.Records != nil {
		deps.Synchronizer = record.NewSynchronizer(p.Records, diag, logger)
	}
	return New(deps, opts)
}
