// Package uploader sequences readiness probing, provisioning, validation,
// upload and record synchronization into a single user-facing lifecycle.
package uploader

import (
	"context"
	"strings"
	"sync"

	"github.com/abduss/crmassets/internal/bucket"
	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/metrics"
	"github.com/abduss/crmassets/internal/record"
	"github.com/abduss/crmassets/internal/upload"
	"go.uber.org/zap"
)

const machineContext = "uploader"

type prober interface {
	Probe(ctx context.Context) bucket.Result
}

type provisioner interface {
	Provision(ctx context.Context) bucket.Report
}

type validator interface {
	Validate(file upload.CandidateFile) error
}

type executor interface {
	Upload(ctx context.Context, file upload.CandidateFile, target upload.Target) (upload.StoredAsset, error)
}

type synchronizer interface {
	Sync(ctx context.Context, entityID, assetURL string) (record.Record, error)
}

// Dependencies are the pipeline components a Machine drives. Synchronizer may be nil.
type Dependencies struct {
	Prober       prober
	Provisioner  provisioner
	Validator    validator
	Executor     executor
	Synchronizer synchronizer
	Diagnostics  *diagnostics.Log
	Logger       *zap.Logger
}

// Options fix the target and initial view of one Machine.
type Options struct {
	Target          upload.Target
	CurrentAssetURL string
	// Preview keeps the candidate file after a successful upload.
	Preview bool
}

// Machine is the upload lifecycle for one target. Its methods are safe for
// concurrent use, but steps of one instance always run one after another.
type Machine struct {
	deps    Dependencies
	target  upload.Target
	preview bool

	mu        sync.Mutex
	state     State
	lastErr   string
	missing   []string
	uploading bool
	candidate *upload.CandidateFile
	displayed string
	committed string
	epoch     uint64
	subs      []func(Snapshot)
}

// New constructs a Machine in the unknown state.
func New(deps Dependencies, opts Options) *Machine {
	if deps.Diagnostics == nil {
		deps.Diagnostics = diagnostics.New(diagnostics.DefaultCapacity)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Machine{
		deps:      deps,
		target:    opts.Target,
		preview:   opts.Preview,
		state:     StateUnknown,
		displayed: opts.CurrentAssetURL,
		committed: opts.CurrentAssetURL,
	}
}

// Diagnostics returns the log this machine writes to.
func (m *Machine) Diagnostics() *diagnostics.Log {
	return m.deps.Diagnostics
}

// Subscribe registers fn to receive a snapshot after every visible change.
func (m *Machine) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Snapshot returns the current renderable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State returns the current readiness state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ProbeReadiness runs the readiness probe. It is a no-op while a probe is in
// flight or the backend is already known to be ready.
func (m *Machine) ProbeReadiness(ctx context.Context) Status {
	m.mu.Lock()
	if m.state == StateChecking || m.state == StateReady {
		status := m.statusLocked()
		m.mu.Unlock()
		return status
	}
	m.transitionLocked(StateChecking, "", nil)
	m.unlockAndPublish()

	result := m.deps.Prober.Probe(ctx)

	m.mu.Lock()
	m.applyProbeLocked(result)
	status := m.statusLocked()
	m.unlockAndPublish()
	return status
}

// Retry re-runs the readiness probe from the error state.
func (m *Machine) Retry(ctx context.Context) Status {
	return m.ProbeReadiness(ctx)
}

// AttemptAutoFix provisions missing buckets and then re-probes for ground truth.
func (m *Machine) AttemptAutoFix(ctx context.Context) Status {
	m.mu.Lock()
	if m.state == StateChecking || m.state == StateReady {
		status := m.statusLocked()
		m.mu.Unlock()
		return status
	}
	m.transitionLocked(StateChecking, "", nil)
	m.unlockAndPublish()

	m.deps.Diagnostics.Append(machineContext, "auto-fix started", nil)
	report := m.deps.Provisioner.Provision(ctx)
	failed := make([]string, 0, len(report.Failed))
	for name := range report.Failed {
		failed = append(failed, name)
	}
	m.deps.Diagnostics.Append(machineContext, "auto-fix finished", map[string]any{
		"created":  report.Created,
		"existing": report.Existing,
		"failed":   failed,
	})

	result := m.deps.Prober.Probe(ctx)
	if !result.Ready && len(result.Missing) > 0 {
		result.Err = bucket.ProvisioningError(result.Missing)
		metrics.ObserveProvision("failed")
	} else if result.Ready {
		metrics.ObserveProvision("fixed")
	} else {
		metrics.ObserveProvision("not_ready")
	}

	m.mu.Lock()
	m.applyProbeLocked(result)
	status := m.statusLocked()
	m.unlockAndPublish()
	return status
}

// SelectFile validates a selected file and makes it the upload candidate.
// Selection is only possible while the backend is ready.
func (m *Machine) SelectFile(name string, data []byte, declaredType string, declaredSize int64) Selection {
	m.mu.Lock()
	if m.state != StateReady {
		m.mu.Unlock()
		return Selection{RejectionReason: ReasonStorageNotReady, Message: "Storage is not ready for uploads."}
	}
	if m.uploading {
		m.mu.Unlock()
		return Selection{RejectionReason: ReasonBusy, Message: "An upload is already in progress."}
	}
	m.mu.Unlock()

	size := declaredSize
	if n := int64(len(data)); n > size {
		size = n
	}
	file := upload.NewCandidateFile(name, declaredType, size, data)

	if err := m.deps.Validator.Validate(file); err != nil {
		reason := rejectionReason(err)
		m.deps.Diagnostics.Append(machineContext, "file rejected", map[string]any{
			"name":         name,
			"content_type": declaredType,
			"size":         size,
			"reason":       reason,
		})
		return Selection{RejectionReason: reason, Message: err.Error()}
	}

	if len(data) > 0 {
		if sniffed := upload.Sniff(data); !upload.SameImageType(declaredType, sniffed) {
			m.deps.Diagnostics.Append(machineContext, "declared type differs from content", map[string]any{
				"declared": declaredType,
				"detected": sniffed,
			})
		}
	}

	m.mu.Lock()
	if m.state != StateReady || m.uploading {
		reason, msg := ReasonStorageNotReady, "Storage is not ready for uploads."
		if m.uploading {
			reason, msg = ReasonBusy, "An upload is already in progress."
		}
		m.mu.Unlock()
		return Selection{RejectionReason: reason, Message: msg}
	}
	m.candidate = &file
	m.displayed = file.Preview
	m.deps.Diagnostics.Append(machineContext, "file selected", map[string]any{
		"name":         name,
		"content_type": declaredType,
		"size":         size,
	})
	m.unlockAndPublish()
	return Selection{Accepted: true}
}

// ConfirmUpload re-checks readiness, uploads the candidate, and for user
// targets writes the new URL into the user record. A record sync failure is
// logged and does not fail the upload.
func (m *Machine) ConfirmUpload(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	if m.uploading {
		m.mu.Unlock()
		return Outcome{}, &Error{Kind: KindBusy, Message: "An upload is already in progress."}
	}
	if strings.TrimSpace(m.target.EntityID) == "" {
		m.deps.Diagnostics.Append(machineContext, "upload refused: missing entity id", map[string]any{"kind": m.target.Kind})
		m.mu.Unlock()
		metrics.ObserveUpload(string(m.target.Kind), string(KindMissingEntityID))
		return Outcome{}, &Error{Kind: KindMissingEntityID, Message: "Save the record before uploading an image.", Err: upload.ErrMissingEntityID}
	}
	if m.candidate == nil {
		m.mu.Unlock()
		return Outcome{}, &Error{Kind: KindNoFile, Message: "Select an image first."}
	}
	if m.state != StateReady {
		msg := m.lastErr
		m.mu.Unlock()
		if msg == "" {
			msg = "Storage is not ready for uploads."
		}
		return Outcome{}, &Error{Kind: KindNotReady, Message: msg}
	}

	file := *m.candidate
	epoch := m.epoch
	m.uploading = true
	m.transitionLocked(StateChecking, "", nil)
	m.unlockAndPublish()

	result := m.deps.Prober.Probe(ctx)

	m.mu.Lock()
	m.applyProbeLocked(result)
	if !result.Ready {
		m.uploading = false
		m.deps.Diagnostics.Append(machineContext, "upload aborted: storage no longer ready", map[string]any{"error": result.Message()})
		m.unlockAndPublish()
		return Outcome{}, &Error{Kind: KindNotReady, Message: result.Message(), Err: result.Err}
	}
	if epoch != m.epoch {
		m.uploading = false
		m.deps.Diagnostics.Append(machineContext, "upload abandoned: selection cancelled", nil)
		m.unlockAndPublish()
		metrics.ObserveUpload(string(m.target.Kind), string(KindCancelled))
		return Outcome{}, &Error{Kind: KindCancelled, Message: "The upload was cancelled."}
	}
	m.unlockAndPublish()

	asset, err := m.deps.Executor.Upload(ctx, file, m.target)
	if err != nil {
		uerr := uploadError(err)
		m.mu.Lock()
		m.uploading = false
		m.deps.Diagnostics.Append(machineContext, "upload attempt failed", map[string]any{
			"kind":    string(uerr.Kind),
			"message": uerr.Message,
			"error":   err.Error(),
		})
		m.unlockAndPublish()
		metrics.ObserveUpload(string(m.target.Kind), string(uerr.Kind))
		return Outcome{}, uerr
	}
	metrics.ObserveUpload(string(m.target.Kind), "success")

	m.mu.Lock()
	current := epoch == m.epoch
	m.mu.Unlock()
	// a cancelled selection must not reach the user record
	if current && m.target.Kind == upload.KindUser {
		m.syncRecord(ctx, asset.URL)
	}

	m.mu.Lock()
	m.uploading = false
	if epoch == m.epoch {
		m.committed = asset.URL
		m.displayed = asset.URL
		if !m.preview {
			m.candidate = nil
		}
	} else {
		m.deps.Diagnostics.Append(machineContext, "upload finished after cancel", map[string]any{"url": asset.URL})
	}
	m.unlockAndPublish()

	return Outcome{AssetURL: asset.URL, Asset: asset}, nil
}

func (m *Machine) syncRecord(ctx context.Context, url string) {
	if m.deps.Synchronizer == nil {
		m.deps.Diagnostics.Append(machineContext, "record sync skipped: no record store", map[string]any{"entity_id": m.target.EntityID})
		metrics.ObserveSync("skipped")
		return
	}
	if _, err := m.deps.Synchronizer.Sync(ctx, m.target.EntityID, url); err != nil {
		m.deps.Diagnostics.Append(machineContext, "upload kept despite record sync failure", map[string]any{
			"entity_id": m.target.EntityID,
			"url":       url,
			"error":     err.Error(),
		})
		m.deps.Logger.Warn("record sync failed after upload",
			zap.String("entity_id", m.target.EntityID),
			zap.String("url", url),
			zap.Error(err),
		)
		metrics.ObserveSync("failed")
		return
	}
	metrics.ObserveSync("success")
}

// Cancel discards the candidate and restores the previously displayed asset.
// Readiness is untouched and in-flight calls are not aborted.
func (m *Machine) Cancel() {
	m.mu.Lock()
	m.candidate = nil
	m.displayed = m.committed
	m.epoch++
	m.deps.Diagnostics.Append(machineContext, "selection cancelled", nil)
	m.unlockAndPublish()
}

func (m *Machine) applyProbeLocked(result bucket.Result) {
	if result.Ready {
		m.missing = nil
		m.transitionLocked(StateReady, "", nil)
		metrics.ObserveProbe("ready")
		return
	}
	m.missing = append([]string(nil), result.Missing...)
	m.transitionLocked(StateError, result.Message(), result.Missing)
	metrics.ObserveProbe("error")
}

func (m *Machine) transitionLocked(to State, message string, missing []string) {
	from := m.state
	if !canTransition(from, to) {
		m.deps.Diagnostics.Append(machineContext, "illegal state transition ignored", map[string]any{"from": from, "to": to})
		m.deps.Logger.Error("illegal uploader transition", zap.String("from", string(from)), zap.String("to", string(to)))
		return
	}
	m.state = to
	m.lastErr = message
	data := map[string]any{"from": from, "to": to}
	if message != "" {
		data["error"] = message
	}
	if len(missing) > 0 {
		data["missing"] = missing
	}
	m.deps.Diagnostics.Append(machineContext, "state changed", data)
}

func (m *Machine) statusLocked() Status {
	return Status{Ready: m.state == StateReady, Error: m.lastErr}
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:     m.state,
		Error:     m.lastErr,
		Missing:   append([]string(nil), m.missing...),
		Target:    m.target,
		CanSelect: m.state == StateReady && !m.uploading,
		Uploading: m.uploading,
		AssetURL:  m.displayed,
		Preview:   m.preview,
	}
	if m.candidate != nil {
		snap.Candidate = &CandidateView{
			Name:        m.candidate.Name,
			ContentType: m.candidate.ContentType,
			Size:        m.candidate.Size,
			Preview:     m.candidate.Preview,
		}
	}
	return snap
}

// unlockAndPublish releases m.mu and delivers a snapshot to subscribers outside the lock.
func (m *Machine) unlockAndPublish() {
	snap := m.snapshotLocked()
	subs := append(make([]func(Snapshot), 0, len(m.subs)), m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
