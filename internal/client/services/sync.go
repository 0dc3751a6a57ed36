package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/client/repositories/metadata"
	"github.com/eunio/dailysync/internal/client/retry"
	"github.com/eunio/dailysync/internal/common"
	"golang.org/x/sync/errgroup"
)

// SyncResult aggregates one SyncPending pass.
type SyncResult struct {
	TotalRecords int
	SuccessCount int
	FailureCount int
	Errors       []string
	// DeadLettered lists the paths of records moved to FAILED in this pass.
	DeadLettered []string
}

// BatchResult aggregates one PushBatch call.
type BatchResult struct {
	TotalRecords int
	SyncedCount  int
	BatchesSent  int
}

// pendingFor returns the owner's pending records, or everyone's when
// ownerID is empty, ordered by path.
func (e *SyncEngine) pendingFor(ctx context.Context, ownerID string) ([]*models.Record, error) {
	all, err := e.repo.GetPending(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if ownerID == "" || r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OwnerID != out[j].OwnerID {
			return out[i].OwnerID < out[j].OwnerID
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out, nil
}

// SyncPending runs one bounded retry cycle for every pending record of the
// owner (all owners when ownerID is empty). A failing record never stops
// the others. Only a failure to read the local store is returned as error.
func (e *SyncEngine) SyncPending(ctx context.Context, ownerID string) (SyncResult, error) {
	ctx = withOperation(ctx)
	started := time.Now()

	pending, err := e.pendingFor(ctx, ownerID)
	if err != nil {
		return SyncResult{}, err
	}

	var (
		mu  sync.Mutex
		res = SyncResult{TotalRecords: len(pending)}
		g   errgroup.Group
	)
	g.SetLimit(e.cfg.Parallelism)

	for _, rec := range pending {
		g.Go(func() error {
			err := e.syncOne(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				res.SuccessCount++
				return nil
			}
			res.FailureCount++
			res.Errors = append(res.Errors, err.Error())
			if errors.Is(err, retry.ErrDeadLettered) {
				if path, perr := paths.Resolve(rec.OwnerID, rec.RecordID); perr == nil {
					res.DeadLettered = append(res.DeadLettered, path)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(res.Errors)
	sort.Strings(res.DeadLettered)

	e.logger.Info(ctx, "SYNC_COMPLETE",
		"totalRecords", res.TotalRecords,
		"successCount", res.SuccessCount,
		"failureCount", res.FailureCount,
		"deadLettered", len(res.DeadLettered),
		"durationMs", time.Since(started).Milliseconds(),
	)

	if e.meta != nil && ownerID != "" {
		if err := metadata.SetLastSyncAt(ctx, e.meta, ownerID, e.clock.Now()); err != nil {
			e.logger.Error(ctx, "failed to record last sync time", "ownerId", ownerID, "error", err)
		}
	}
	return res, nil
}

// syncOne retries one record. Each attempt runs under the record's lock
// and writes the version stored at that moment; the backoff between
// attempts does not hold the lock, so Save of the same record is never
// kept waiting on it.
func (e *SyncEngine) syncOne(ctx context.Context, rec *models.Record) error {
	current, err := e.repo.Get(ctx, rec.OwnerID, rec.RecordID)
	if err != nil {
		return err
	}
	if current == nil || current.SyncState == models.SyncStateSynced {
		return nil
	}
	path, err := paths.Resolve(rec.OwnerID, rec.RecordID)
	if err != nil {
		return err
	}

	return e.scheduler.AttemptWithBackoff(ctx, current, func(ctx context.Context, r *models.Record) error {
		return e.writeRemote(ctx, path, r)
	}, retry.WithGuard(e.guard))
}

// guard locks rec's path and re-reads it. A record deleted or synced in
// the meantime comes back nil with the lock already released.
func (e *SyncEngine) guard(ctx context.Context, rec *models.Record) (*models.Record, func(), error) {
	path, err := paths.Resolve(rec.OwnerID, rec.RecordID)
	if err != nil {
		return nil, nil, err
	}
	unlock := e.lock(path)
	current, err := e.repo.Get(ctx, rec.OwnerID, rec.RecordID)
	if err != nil || current == nil || current.SyncState == models.SyncStateSynced {
		unlock()
		return nil, nil, err
	}
	return current, unlock, nil
}

// lockChunk locks every path of chunk, in path order, and returns the
// records as currently stored. Records synced or deleted since chunk was
// built are left out.
func (e *SyncEngine) lockChunk(ctx context.Context, chunk []client.PathRecord) ([]client.PathRecord, func(), error) {
	sorted := slices.Clone(chunk)
	slices.SortFunc(sorted, func(a, b client.PathRecord) int { return strings.Compare(a.Path, b.Path) })

	unlocks := make([]func(), 0, len(sorted))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	out := make([]client.PathRecord, 0, len(sorted))
	for _, it := range sorted {
		unlocks = append(unlocks, e.lock(it.Path))
		current, err := e.repo.Get(ctx, it.Record.OwnerID, it.Record.RecordID)
		if err != nil {
			release()
			return nil, nil, err
		}
		if current == nil || current.SyncState == models.SyncStateSynced {
			continue
		}
		out = append(out, client.PathRecord{Path: it.Path, Record: current})
	}
	return out, release, nil
}

// PushBatch sends the owner's pending records with BatchSet, in sub-batches
// of at most MaxBatchSize records. Each sub-batch that succeeds is marked
// SYNCED right away, so a later call does not send it again. The first
// failing sub-batch stops the push and its error is returned.
//
// A sub-batch holds the locks of all its records from the re-read until
// they are marked, so a Save of one of them waits for the batch and its
// newer version is written after the batched one.
func (e *SyncEngine) PushBatch(ctx context.Context, ownerID string) (BatchResult, error) {
	ctx = withOperation(ctx)
	if strings.TrimSpace(ownerID) == "" {
		return BatchResult{}, fmt.Errorf("%w: ownerId is blank", common.ErrValidation)
	}

	pending, err := e.pendingFor(ctx, ownerID)
	if err != nil {
		return BatchResult{}, err
	}
	res := BatchResult{TotalRecords: len(pending)}

	items := make([]client.PathRecord, 0, len(pending))
	for _, rec := range pending {
		path, err := paths.Resolve(rec.OwnerID, rec.RecordID)
		if err != nil {
			return res, err
		}
		items = append(items, client.PathRecord{Path: path, Record: rec})
	}

	size := e.remote.MaxBatchSize()
	if size <= 0 {
		size = 1
	}
	for start := 0; start < len(items); start += size {
		synced, err := e.pushChunk(ctx, ownerID, res.BatchesSent+1, items[start:min(start+size, len(items))])
		if synced > 0 {
			res.BatchesSent++
			res.SyncedCount += synced
		}
		if err != nil {
			return res, fmt.Errorf("%w after %d synced", err, res.SyncedCount)
		}
	}
	return res, nil
}

// pushChunk sends one sub-batch under its records' locks and returns how
// many records it marked SYNCED.
func (e *SyncEngine) pushChunk(ctx context.Context, ownerID string, batch int, chunk []client.PathRecord) (int, error) {
	chunk, release, err := e.lockChunk(ctx, chunk)
	if err != nil {
		return 0, err
	}
	defer release()
	if len(chunk) == 0 {
		return 0, nil
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	began := time.Now()
	err = remoteErr(e.remote.BatchSet(rctx, chunk))
	cancel()
	latency := time.Since(began).Milliseconds()

	if err != nil {
		e.logger.Warn(ctx, "BATCH_WRITE",
			"ownerId", ownerID,
			"batch", batch,
			"size", len(chunk),
			"status", StatusFailed,
			"latencyMs", latency,
			"error", err.Error(),
			"kind", common.KindOf(err),
		)
		now := e.clock.Now().Unix()
		for _, it := range chunk {
			if ierr := e.repo.IncrementRetry(ctx, it.Record.OwnerID, it.Record.RecordID, now); ierr != nil {
				return 0, ierr
			}
		}
		return 0, fmt.Errorf("batch %d of %d records failed: %w", batch, len(chunk), err)
	}

	e.logger.Info(ctx, "BATCH_WRITE",
		"ownerId", ownerID,
		"batch", batch,
		"size", len(chunk),
		"status", StatusSuccess,
		"latencyMs", latency,
	)
	for i, it := range chunk {
		if err := e.repo.MarkSynced(ctx, it.Record.OwnerID, it.Record.RecordID); err != nil {
			return i, err
		}
	}
	return len(chunk), nil
}

// Run syncs the owner's pending records right away and then on every tick
// until ctx is done. When the remote store can be probed, ticks are skipped
// while it is unreachable and CONNECTIVITY changes are logged.
func (e *SyncEngine) Run(ctx context.Context, ownerID string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", common.ErrValidation)
	}
	pinger, _ := e.remote.(client.Pinger)

	online := true
	tick := func() {
		if pinger != nil {
			pctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
			err := pinger.Ping(pctx)
			cancel()

			if err != nil {
				if online {
					e.logger.Warn(ctx, "CONNECTIVITY", "online", false, "error", err.Error())
				}
				online = false
				return
			}
			if !online {
				e.logger.Info(ctx, "CONNECTIVITY", "online", true)
			}
			online = true
		}
		if _, err := e.SyncPending(ctx, ownerID); err != nil {
			e.logger.Error(ctx, "sync pass failed", "ownerId", ownerID, "error", err)
		}
	}

	tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick()
		}
	}
}
