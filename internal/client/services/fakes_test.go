package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/conflict"
	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/client/repositories/records"
	"github.com/eunio/dailysync/internal/client/retry"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/logging"
	"github.com/eunio/dailysync/internal/timex"
	"github.com/stretchr/testify/require"
)

// today is 2025-01-10 as epoch days.
const today int64 = 20098

var noon = time.Unix(today*86400+12*3600, 0).UTC()

// fakeRemote is an in-memory RemoteStore with failure injection.
type fakeRemote struct {
	mu   sync.Mutex
	docs map[string]*models.Record

	setErr     error
	failPaths  map[string]error
	getErr     error
	rangeErr   error
	deleteErr  error
	pingErr    error
	blockSet   bool
	setDelay   time.Duration
	maxBatch   int
	batchErrAt int
	batchErr   error
	// batchEntered is closed when BatchSet starts; it then waits for
	// batchGate.
	batchEntered chan struct{}
	batchGate    chan struct{}

	setCalls    int
	batchSizes  []int
	inFlight    map[string]int
	maxInFlight int
}

var (
	_ client.RemoteStore = (*fakeRemote)(nil)
	_ client.Pinger      = (*fakeRemote)(nil)
)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:      map[string]*models.Record{},
		failPaths: map[string]error{},
		inFlight:  map[string]int{},
		maxBatch:  500,
	}
}

func (f *fakeRemote) update(fn func(f *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func stored(rec *models.Record) *models.Record {
	c := rec.Clone()
	c.SyncState = models.SyncStateSynced
	c.SyncRetryCount = 0
	c.LastSyncAttempt = nil
	return c
}

func (f *fakeRemote) put(t *testing.T, rec *models.Record) {
	t.Helper()
	path, err := paths.Resolve(rec.OwnerID, rec.RecordID)
	require.NoError(t, err)
	f.update(func(f *fakeRemote) { f.docs[path] = stored(rec) })
}

func (f *fakeRemote) doc(path string) *models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[path]; ok {
		return d.Clone()
	}
	return nil
}

func (f *fakeRemote) Get(_ context.Context, path string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if d, ok := f.docs[path]; ok {
		return d.Clone(), nil
	}
	return nil, nil
}

func (f *fakeRemote) Set(ctx context.Context, path string, rec *models.Record) error {
	f.mu.Lock()
	f.setCalls++
	f.inFlight[path]++
	if f.inFlight[path] > f.maxInFlight {
		f.maxInFlight = f.inFlight[path]
	}
	block, delay := f.blockSet, f.setDelay
	err := f.setErr
	if e, ok := f.failPaths[path]; ok {
		err = e
	}
	f.mu.Unlock()

	defer f.update(func(f *fakeRemote) { f.inFlight[path]-- })

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return err
	}
	f.update(func(f *fakeRemote) { f.docs[path] = stored(rec) })
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[path]; !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	delete(f.docs, path)
	return nil
}

func (f *fakeRemote) GetRange(_ context.Context, ownerID string, start, end int64) ([]*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []*models.Record
	for path, d := range f.docs {
		owner, _, err := paths.Parse(path)
		if err != nil || owner != ownerID {
			continue
		}
		if d.LogicalDate >= start && d.LogicalDate <= end {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalDate > out[j].LogicalDate })
	return out, nil
}

func (f *fakeRemote) BatchSet(ctx context.Context, items []client.PathRecord) error {
	f.mu.Lock()
	entered, gate := f.batchEntered, f.batchGate
	f.batchEntered, f.batchGate = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(entered)
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(items) > f.maxBatch {
		return fmt.Errorf("%w: batch of %d exceeds %d", common.ErrValidation, len(items), f.maxBatch)
	}
	f.batchSizes = append(f.batchSizes, len(items))
	if len(f.batchSizes) == f.batchErrAt {
		return f.batchErr
	}
	for _, it := range items {
		f.docs[it.Path] = stored(it.Record)
	}
	return nil
}

func (f *fakeRemote) MaxBatchSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxBatch
}

func (f *fakeRemote) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

type env struct {
	db     *sql.DB
	repo   *records.SQLiteRepository
	remote *fakeRemote
	logger *logging.MemoryLogger
	clock  *timex.FakeClock
	engine *SyncEngine
}

func newEnv(t *testing.T, cfg EngineConfig, opts ...EngineOption) *env {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		db:     db,
		repo:   records.NewSQLiteRepository(db),
		remote: newFakeRemote(),
		logger: logging.NewMemoryLogger(),
		clock:  timex.NewFakeClock(noon),
	}
	noSleep := retry.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	sched := retry.NewScheduler(retry.DefaultConfig(), e.repo, e.clock, e.logger, noSleep)
	e.engine = NewSyncEngine(e.repo, e.remote, conflict.NewResolver(e.logger), sched, e.clock, e.logger, cfg, opts...)
	return e
}

func newRecord(owner string, day int64, payload map[string]any) *models.Record {
	return &models.Record{
		OwnerID:     owner,
		RecordID:    models.RecordIDForDate(day),
		LogicalDate: day,
		Payload:     payload,
	}
}

// seedLocal stores rec as-is, bypassing the engine.
func (e *env) seedLocal(t *testing.T, rec *models.Record) {
	t.Helper()
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = 1
	}
	require.NoError(t, e.repo.Upsert(context.Background(), rec))
}

func (e *env) local(t *testing.T, owner, recordID string) *models.Record {
	t.Helper()
	got, err := e.repo.Get(context.Background(), owner, recordID)
	require.NoError(t, err)
	return got
}

func pathOf(t *testing.T, owner, recordID string) string {
	t.Helper()
	p, err := paths.Resolve(owner, recordID)
	require.NoError(t, err)
	return p
}
