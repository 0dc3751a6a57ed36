package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/conflict"
	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/client/repositories/metadata"
	"github.com/eunio/dailysync/internal/client/repositories/records"
	"github.com/eunio/dailysync/internal/client/retry"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/logging"
	"github.com/eunio/dailysync/internal/timex"
	"github.com/google/uuid"
)

// Values of the REMOTE_WRITE status and SYNC_RESULT direction fields.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"

	DirectionLocalWins     = "LOCAL_WINS"
	DirectionRemoteToLocal = "REMOTE_TO_LOCAL"
)

type EngineConfig struct {
	// RemoteTimeout bounds every single remote call.
	RemoteTimeout time.Duration
	// Parallelism is the number of records SyncPending works on at once.
	Parallelism int
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{RemoteTimeout: 10 * time.Second, Parallelism: 4}
}

// SyncEngine orchestrates the local and remote stores. Operations on the
// same record are serialized; different records proceed in parallel.
type SyncEngine struct {
	repo      records.Repository
	remote    client.RemoteStore
	resolver  *conflict.Resolver
	scheduler *retry.Scheduler
	clock     timex.Clock
	logger    logging.Logger
	cfg       EngineConfig
	meta      metadata.Repository

	locks sync.Map // path -> *sync.Mutex
}

type EngineOption func(*SyncEngine)

// WithMetadata makes SyncPending record last_sync_at for the owner.
func WithMetadata(repo metadata.Repository) EngineOption {
	return func(e *SyncEngine) { e.meta = repo }
}

func NewSyncEngine(
	repo records.Repository,
	remote client.RemoteStore,
	resolver *conflict.Resolver,
	scheduler *retry.Scheduler,
	clock timex.Clock,
	l logging.Logger,
	cfg EngineConfig,
	opts ...EngineOption,
) *SyncEngine {
	def := DefaultEngineConfig()
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = def.RemoteTimeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	e := &SyncEngine{
		repo:      repo,
		remote:    remote,
		resolver:  resolver,
		scheduler: scheduler,
		clock:     clock,
		logger:    l.With("module", "sync"),
		cfg:       cfg,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// lock acquires the per-record mutex for path and returns its release func.
func (e *SyncEngine) lock(path string) func() {
	m, _ := e.locks.LoadOrStore(path, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func withOperation(ctx context.Context) context.Context {
	if common.OperationID(ctx) != "" {
		return ctx
	}
	return common.WithOperationID(ctx, uuid.NewString())
}

// remoteErr turns an expired per-call deadline into a network error.
func remoteErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, common.ErrNetwork) {
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	return err
}

// Save persists rec locally as PENDING and then tries to push it. Only the
// local write decides the result: remote failures are logged, counted on
// the record and left to SyncPending.
func (e *SyncEngine) Save(ctx context.Context, rec *models.Record) error {
	ctx = withOperation(ctx)
	if rec == nil {
		return models.Validate(nil, 0)
	}
	e.logger.Info(ctx, "SAVE_START", "ownerId", rec.OwnerID, "recordId", rec.RecordID, "logicalDate", rec.LogicalDate)

	now := e.clock.Now()
	if err := models.Validate(rec, models.EpochDays(now)); err != nil {
		return err
	}
	path, err := paths.Resolve(rec.OwnerID, rec.RecordID)
	if err != nil {
		return err
	}

	unlock := e.lock(path)
	defer unlock()

	existing, err := e.repo.Get(ctx, rec.OwnerID, rec.RecordID)
	if err != nil {
		return err
	}

	toSave := rec.Clone()
	toSave.UpdatedAt = now.Unix()
	toSave.CreatedAt = toSave.UpdatedAt
	toSave.SyncRetryCount = 0
	toSave.LastSyncAttempt = nil
	if existing != nil {
		if existing.CreatedAt > 0 && existing.CreatedAt <= toSave.UpdatedAt {
			toSave.CreatedAt = existing.CreatedAt
		}
		toSave.SyncRetryCount = existing.SyncRetryCount
		toSave.LastSyncAttempt = existing.LastSyncAttempt
	}
	if toSave.SchemaVersion <= 0 {
		toSave.SchemaVersion = models.CurrentSchemaVersion
	}
	toSave.SyncState = models.SyncStatePending

	if err := e.repo.Upsert(ctx, toSave); err != nil {
		return err
	}

	if err := e.writeRemote(ctx, path, toSave); err != nil {
		if err := e.repo.IncrementRetry(ctx, rec.OwnerID, rec.RecordID, e.clock.Now().Unix()); err != nil {
			e.logger.Error(ctx, "failed to count remote write failure", "path", path, "error", err)
		}
		return nil
	}
	if err := e.repo.MarkSynced(ctx, rec.OwnerID, rec.RecordID); err != nil {
		e.logger.Error(ctx, "failed to mark record synced", "path", path, "error", err)
	}
	return nil
}

// writeRemote performs one timed remote Set and logs REMOTE_WRITE.
func (e *SyncEngine) writeRemote(ctx context.Context, path string, rec *models.Record) error {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	start := time.Now()
	err := remoteErr(e.remote.Set(rctx, path, rec))
	latency := time.Since(start).Milliseconds()

	if err != nil {
		e.logger.Warn(ctx, "REMOTE_WRITE",
			"path", path,
			"status", StatusFailed,
			"latencyMs", latency,
			"error", err.Error(),
			"kind", common.KindOf(err),
		)
		return err
	}
	e.logger.Info(ctx, "REMOTE_WRITE", "path", path, "status", StatusSuccess, "latencyMs", latency)
	return nil
}

// Load returns the reconciled record, or nil if neither store has it.
// Remote failures fall back to the local copy.
func (e *SyncEngine) Load(ctx context.Context, ownerID, recordID string) (*models.Record, error) {
	ctx = withOperation(ctx)
	path, err := paths.Resolve(ownerID, recordID)
	if err != nil {
		return nil, err
	}
	local, err := e.repo.Get(ctx, ownerID, recordID)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, path, local)
}

// LoadByDate is Load addressed by epoch day. The record id is the local
// record's id when one exists, otherwise the yyyy-MM-dd form of the day.
func (e *SyncEngine) LoadByDate(ctx context.Context, ownerID string, logicalDate int64) (*models.Record, error) {
	ctx = withOperation(ctx)
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: ownerId is blank", common.ErrValidation)
	}
	local, err := e.repo.GetByLogicalDate(ctx, ownerID, logicalDate)
	if err != nil {
		return nil, err
	}
	recordID := models.RecordIDForDate(logicalDate)
	if local != nil {
		recordID = local.RecordID
	}
	path, err := paths.Resolve(ownerID, recordID)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, path, local)
}

func (e *SyncEngine) reconcile(ctx context.Context, path string, local *models.Record) (*models.Record, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	remote, err := e.remote.Get(rctx, path)
	cancel()

	if err != nil {
		err = remoteErr(err)
		e.logger.Warn(ctx, "LOAD_RESULT",
			"path", path,
			"found", local != nil,
			"localUpdatedAt", updatedAt(local),
			"remoteError", err.Error(),
			"kind", common.KindOf(err),
		)
		return local, nil
	}
	if local == nil && remote == nil {
		e.logger.Info(ctx, "LOAD_RESULT", "path", path, "found", false)
		return nil, nil
	}

	winner, err := e.resolveAndRepair(ctx, path, local, remote)
	if err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "LOAD_RESULT",
		"path", path,
		"found", true,
		"remoteUpdatedAt", updatedAt(remote),
		"localUpdatedAt", updatedAt(local),
	)
	return winner, nil
}

// resolveAndRepair picks the winner of local and remote and writes it back
// to the local store. A remote winner is stored as SYNCED. A local winner
// is marked SYNCED only when the remote holds the same version; a strictly
// newer local copy keeps its state so the next sync pushes it. The repair is
// skipped if the local record changed while the remote was being read.
func (e *SyncEngine) resolveAndRepair(ctx context.Context, path string, local, remote *models.Record) (*models.Record, error) {
	dec, err := e.resolver.Resolve(ctx, local, remote)
	if err != nil {
		return nil, err
	}
	direction := DirectionLocalWins
	if dec.Source == conflict.SourceRemote {
		direction = DirectionRemoteToLocal
	}
	e.logger.Info(ctx, "SYNC_RESULT",
		"path", path,
		"direction", direction,
		"winner", string(dec.Source),
		"reason", dec.Reason,
		"remoteUpdatedAt", updatedAt(remote),
		"localUpdatedAt", updatedAt(local),
	)

	unlock := e.lock(path)
	defer unlock()

	ownerID, recordID, err := paths.Parse(path)
	if err != nil {
		return nil, err
	}
	current, err := e.repo.Get(ctx, ownerID, recordID)
	if err != nil {
		return nil, err
	}
	if !sameVersion(current, local) {
		e.logger.Debug(ctx, "local record changed during load, repair skipped", "path", path)
		return dec.Winner.Clone(), nil
	}

	winner := dec.Winner.Clone()
	switch {
	case dec.Source == conflict.SourceRemote:
		winner.OwnerID = ownerID
		winner.SyncState = models.SyncStateSynced
		winner.SyncRetryCount = 0
		if local != nil {
			winner.LastSyncAttempt = local.LastSyncAttempt
		}
		if err := e.repo.Upsert(ctx, winner); err != nil {
			return nil, err
		}
	case remote != nil && remote.UpdatedAt == local.UpdatedAt && local.SyncState != models.SyncStateSynced:
		if err := e.repo.MarkSynced(ctx, ownerID, recordID); err != nil {
			return nil, err
		}
		winner.SyncState = models.SyncStateSynced
		winner.SyncRetryCount = 0
	}
	return winner, nil
}

// LoadRange returns the owner's records with start <= logicalDate <= end,
// newest day first, reconciling each day present on either side.
func (e *SyncEngine) LoadRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Record, error) {
	ctx = withOperation(ctx)
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: ownerId is blank", common.ErrValidation)
	}
	if start > end {
		return nil, fmt.Errorf("%w: range start %d is after end %d", common.ErrValidation, start, end)
	}

	locals, err := e.repo.GetRange(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	remotes, err := e.remote.GetRange(rctx, ownerID, start, end)
	cancel()
	if err != nil {
		err = remoteErr(err)
		e.logger.Warn(ctx, "remote range unavailable, serving local records",
			"ownerId", ownerID, "start", start, "end", end,
			"error", err.Error(), "kind", common.KindOf(err))
		return locals, nil
	}

	byID := make(map[string]*models.Record, len(locals))
	for _, l := range locals {
		byID[l.RecordID] = l
	}
	remoteByID := make(map[string]*models.Record, len(remotes))
	for _, r := range remotes {
		remoteByID[r.RecordID] = r
		if _, ok := byID[r.RecordID]; !ok {
			byID[r.RecordID] = nil
		}
	}

	out := make([]*models.Record, 0, len(byID))
	for id, local := range byID {
		path, err := paths.Resolve(ownerID, id)
		if err != nil {
			return nil, err
		}
		winner, err := e.resolveAndRepair(ctx, path, local, remoteByID[id])
		if err != nil {
			return nil, err
		}
		out = append(out, winner)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LogicalDate != out[j].LogicalDate {
			return out[i].LogicalDate > out[j].LogicalDate
		}
		return out[i].RecordID > out[j].RecordID
	})
	return out, nil
}

// Delete removes the record locally and then remotely. The local delete
// decides the result; a remote failure is logged and a remote copy that is
// already gone counts as deleted.
func (e *SyncEngine) Delete(ctx context.Context, ownerID, recordID string) error {
	ctx = withOperation(ctx)
	path, err := paths.Resolve(ownerID, recordID)
	if err != nil {
		return err
	}

	unlock := e.lock(path)
	defer unlock()

	if err := e.repo.Delete(ctx, ownerID, recordID); err != nil {
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	start := time.Now()
	err = remoteErr(e.remote.Delete(rctx, path))
	cancel()
	latency := time.Since(start).Milliseconds()

	if err != nil && !errors.Is(err, common.ErrNotFound) {
		e.logger.Warn(ctx, "DELETE_RESULT",
			"path", path,
			"status", StatusFailed,
			"latencyMs", latency,
			"error", err.Error(),
			"kind", common.KindOf(err),
		)
		return nil
	}
	e.logger.Info(ctx, "DELETE_RESULT", "path", path, "status", StatusSuccess, "latencyMs", latency)
	return nil
}

func updatedAt(r *models.Record) any {
	if r == nil {
		return nil
	}
	return r.UpdatedAt
}

func sameVersion(a, b *models.Record) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UpdatedAt == b.UpdatedAt
}
