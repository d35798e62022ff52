package bucket

import (
	"context"

	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/storage"
	"go.uber.org/zap"
)

const provisionContext = "storage-provision"

type containerCreator interface {
	CreateContainer(ctx context.Context, spec storage.ContainerSpec) error
}

// Provisioner idempotently creates the required containers.
type Provisioner struct {
	store  containerCreator
	specs  []Spec
	diag   *diagnostics.Log
	logger *zap.Logger
}

// NewProvisioner constructs a Provisioner for specs.
func NewProvisioner(store containerCreator, specs []Spec, diag *diagnostics.Log, logger *zap.Logger) *Provisioner {
	if diag == nil {
		diag = diagnostics.New(diagnostics.DefaultCapacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{store: store, specs: specs, diag: diag, logger: logger}
}

// Provision attempts every spec; a failure on one container does not stop the others.
func (p *Provisioner) Provision(ctx context.Context) Report {
	report := Report{Failed: make(map[string]error)}

	for _, spec := range p.specs {
		err := p.store.CreateContainer(ctx, spec.containerSpec())
		switch {
		case err == nil:
			report.Created = append(report.Created, spec.Name)
			p.diag.Append(provisionContext, "bucket created", map[string]any{
				"bucket":           spec.Name,
				"public":           spec.Public,
				"max_object_bytes": spec.MaxObjectBytes,
				"allowed_types":    spec.AllowedTypes,
			})
			p.logger.Info("bucket created", zap.String("bucket", spec.Name))
		case storage.CodeOf(err) == storage.CodeBucketExists:
			report.Existing = append(report.Existing, spec.Name)
			p.diag.Append(provisionContext, "bucket already exists", map[string]any{"bucket": spec.Name})
		default:
			report.Failed[spec.Name] = err
			p.diag.Append(provisionContext, "bucket creation failed", map[string]any{
				"bucket": spec.Name,
				"code":   string(storage.CodeOf(err)),
				"error":  err.Error(),
			})
			p.logger.Warn("bucket creation failed", zap.String("bucket", spec.Name), zap.Error(err))
		}
	}

	return report
}
