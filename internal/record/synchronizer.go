package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/crmassets/internal/diagnostics"
	"go.uber.org/zap"
)

const syncContext = "record-sync"

type recordStore interface {
	FindByExternalID(ctx context.Context, externalID string) (Record, error)
	UpdateAssetURL(ctx context.Context, externalID, assetURL string, updatedAt time.Time) (Record, error)
}

// Synchronizer writes uploaded asset URLs into user records.
type Synchronizer struct {
	store   recordStore
	diag    *diagnostics.Log
	logger  *zap.Logger
	nowFunc func() time.Time
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(store recordStore, diag *diagnostics.Log, logger *zap.Logger) *Synchronizer {
	if diag == nil {
		diag = diagnostics.New(diagnostics.DefaultCapacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{store: store, diag: diag, logger: logger, nowFunc: time.Now}
}

// Sync looks the record up, then updates it. A missing record is terminal and never retried.
func (s *Synchronizer) Sync(ctx context.Context, entityID, assetURL string) (Record, error) {
	if _, err := s.store.FindByExternalID(ctx, entityID); err != nil {
		return Record{}, s.fail("lookup", entityID, err)
	}

	rec, err := s.store.UpdateAssetURL(ctx, entityID, assetURL, s.nowFunc().UTC())
	if err != nil {
		return Record{}, s.fail("update", entityID, err)
	}

	s.diag.Append(syncContext, "record updated", map[string]any{"entity_id": entityID, "asset_url": assetURL})
	return rec, nil
}

func (s *Synchronizer) fail(step, entityID string, err error) error {
	var wrapped error
	if errors.Is(err, ErrEntityNotFound) {
		wrapped = fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	} else {
		wrapped = fmt.Errorf("%w: %s %s: %v", ErrSyncFailed, step, entityID, err)
	}
	s.diag.Append(syncContext, "record sync failed", map[string]any{
		"entity_id": entityID,
		"step":      step,
		"error":     wrapped.Error(),
	})
	s.logger.Warn("record sync failed", zap.String("entity_id", entityID), zap.String("step", step), zap.Error(err))
	return wrapped
}
