package records

import (
	"context"
	"database/sql"
	"testing"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRecord(owner, id string, day, updated int64) *models.Record {
	return &models.Record{
		OwnerID:       owner,
		RecordID:      id,
		LogicalDate:   day,
		CreatedAt:     updated,
		UpdatedAt:     updated,
		SchemaVersion: 1,
		SyncState:     models.SyncStatePending,
		Payload:       map[string]any{models.FieldMood: "calm", models.FieldBBT: 97.5},
	}
}

func TestUpsert_InsertThenOverwrite(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := newRecord("u1", "2025-01-10", 20098, 100)
	require.NoError(t, r.Upsert(ctx, rec))

	got, err := r.Get(ctx, "u1", "2025-01-10")
	require.NoError(t, err)
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}

	var path string
	require.NoError(t, db.QueryRow(`SELECT path FROM records WHERE record_id = ?`, "2025-01-10").Scan(&path))
	assert.Equal(t, "users/u1/dailyLogs/2025-01-10", path)

	at := int64(150)
	upd := newRecord("u1", "2025-01-10", 20098, 200)
	upd.CreatedAt = 100
	upd.Payload = map[string]any{models.FieldNotes: "second"}
	upd.SyncState = models.SyncStateSynced
	upd.LastSyncAttempt = &at
	require.NoError(t, r.Upsert(ctx, upd))

	got, err = r.Get(ctx, "u1", "2025-01-10")
	require.NoError(t, err)
	if diff := cmp.Diff(upd, got); diff != "" {
		t.Fatalf("overwritten record mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsert_DefaultsAndValidation(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	rec := &models.Record{OwnerID: "u1", RecordID: "a", LogicalDate: 1, CreatedAt: 1, UpdatedAt: 1}
	require.NoError(t, r.Upsert(ctx, rec))
	got, err := r.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatePending, got.SyncState)
	assert.Equal(t, models.CurrentSchemaVersion, got.SchemaVersion)
	assert.Nil(t, got.Payload)

	err = r.Upsert(ctx, &models.Record{OwnerID: "", RecordID: "a"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestGet_NotFoundIsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	got, err := r.Get(context.Background(), "u1", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.GetByLogicalDate(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByLogicalDate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newRecord("u1", "2025-01-10", 20098, 100)))
	require.NoError(t, r.Upsert(ctx, newRecord("u2", "2025-01-10", 20098, 300)))

	got, err := r.GetByLogicalDate(ctx, "u1", 20098)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, int64(100), got.UpdatedAt)
}

func TestGetRange_InclusiveAndDescending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for day := int64(10); day <= 14; day++ {
		require.NoError(t, r.Upsert(ctx, newRecord("u1", models.RecordIDForDate(day), day, 100)))
	}
	require.NoError(t, r.Upsert(ctx, newRecord("u2", models.RecordIDForDate(12), 12, 100)))

	got, err := r.GetRange(ctx, "u1", 11, 13)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{13, 12, 11}, []int64{got[0].LogicalDate, got[1].LogicalDate, got[2].LogicalDate})

	got, err = r.GetRange(ctx, "u1", 20, 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDelete_IsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newRecord("u1", "a", 1, 1)))
	require.NoError(t, r.Delete(ctx, "u1", "a"))
	require.NoError(t, r.Delete(ctx, "u1", "a"))

	got, err := r.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSyncStateTransitions(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, newRecord("u1", "a", 1, 1)))

	require.NoError(t, r.IncrementRetry(ctx, "u1", "a", 500))
	require.NoError(t, r.IncrementRetry(ctx, "u1", "a", 600))
	got, err := r.Get(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.SyncRetryCount)
	require.NotNil(t, got.LastSyncAttempt)
	assert.Equal(t, int64(600), *got.LastSyncAttempt)
	assert.Equal(t, models.SyncStatePending, got.SyncState)

	require.NoError(t, r.MarkFailed(ctx, "u1", "a"))
	got, _ = r.Get(ctx, "u1", "a")
	assert.Equal(t, models.SyncStateFailed, got.SyncState)
	assert.Equal(t, 2, got.SyncRetryCount)

	require.NoError(t, r.MarkPending(ctx, "u1", "a"))
	got, _ = r.Get(ctx, "u1", "a")
	assert.Equal(t, models.SyncStatePending, got.SyncState)

	require.NoError(t, r.MarkSynced(ctx, "u1", "a"))
	got, _ = r.Get(ctx, "u1", "a")
	assert.Equal(t, models.SyncStateSynced, got.SyncState)
	assert.Equal(t, 0, got.SyncRetryCount)
	assert.Equal(t, int64(600), *got.LastSyncAttempt)

	// absent records are a no-op
	require.NoError(t, r.MarkSynced(ctx, "u1", "missing"))
	require.NoError(t, r.IncrementRetry(ctx, "u1", "missing", 1))
}

func TestGetPending_IncludesFailed(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newRecord("u1", "p", 1, 1)))
	require.NoError(t, r.Upsert(ctx, newRecord("u2", "f", 2, 1)))
	require.NoError(t, r.Upsert(ctx, newRecord("u1", "s", 3, 1)))
	require.NoError(t, r.MarkFailed(ctx, "u2", "f"))
	require.NoError(t, r.MarkSynced(ctx, "u1", "s"))

	got, err := r.GetPending(ctx)
	require.NoError(t, err)

	ids := map[string]models.SyncState{}
	for _, rec := range got {
		ids[rec.OwnerID+"/"+rec.RecordID] = rec.SyncState
	}
	assert.Equal(t, map[string]models.SyncState{
		"u1/p": models.SyncStatePending,
		"u2/f": models.SyncStateFailed,
	}, ids)
}

func TestErrorsAreDatabaseErrors(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "u1", "a")
	require.ErrorIs(t, err, common.ErrDatabase)

	_, err = r.GetRange(ctx, "u1", 0, 1)
	require.ErrorIs(t, err, common.ErrDatabase)

	_, err = r.GetPending(ctx)
	require.ErrorIs(t, err, common.ErrDatabase)

	require.ErrorIs(t, r.Upsert(ctx, newRecord("u1", "a", 1, 1)), common.ErrDatabase)
	require.ErrorIs(t, r.Delete(ctx, "u1", "a"), common.ErrDatabase)
	require.ErrorIs(t, r.MarkSynced(ctx, "u1", "a"), common.ErrDatabase)
	require.ErrorIs(t, r.MarkFailed(ctx, "u1", "a"), common.ErrDatabase)
	require.ErrorIs(t, r.IncrementRetry(ctx, "u1", "a", 1), common.ErrDatabase)
}

func TestCorruptPayloadIsDatabaseError(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, newRecord("u1", "a", 1, 1)))

	_, err := db.Exec(`UPDATE records SET payload = '{not json' WHERE record_id = 'a'`)
	require.NoError(t, err)

	_, err = r.Get(ctx, "u1", "a")
	require.ErrorIs(t, err, common.ErrDatabase)
}
