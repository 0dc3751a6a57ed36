package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/dbx"
)

const recordColumns = `owner_id, record_id, payload, logical_date, created_at, updated_at,
	schema_version, sync_state, last_sync_attempt, sync_retry_count`

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func dbErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", common.ErrDatabase, op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*models.Record, error) {
	var (
		r           models.Record
		payload     string
		state       string
		lastAttempt sql.NullInt64
	)
	if err := s.Scan(&r.OwnerID, &r.RecordID, &payload, &r.LogicalDate, &r.CreatedAt, &r.UpdatedAt,
		&r.SchemaVersion, &state, &lastAttempt, &r.SyncRetryCount); err != nil {
		return nil, err
	}
	p, err := models.DecodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload of %s/%s: %w", r.OwnerID, r.RecordID, err)
	}
	r.Payload = p
	r.SyncState = models.SyncState(state)
	if lastAttempt.Valid {
		v := lastAttempt.Int64
		r.LastSyncAttempt = &v
	}
	return &r, nil
}

func (r *SQLiteRepository) queryOne(ctx context.Context, op, query string, args ...any) (*models.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(op, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) queryMany(ctx context.Context, op, query string, args ...any) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr(op, err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dbErr(op, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(op, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID, recordID string) (*models.Record, error) {
	return r.queryOne(ctx, "get record",
		`SELECT `+recordColumns+` FROM records WHERE owner_id = ? AND record_id = ?`, ownerID, recordID)
}

// GetByLogicalDate returns the most recently updated record if several
// record ids share the same day.
func (r *SQLiteRepository) GetByLogicalDate(ctx context.Context, ownerID string, logicalDate int64) (*models.Record, error) {
	return r.queryOne(ctx, "get record by date",
		`SELECT `+recordColumns+` FROM records WHERE owner_id = ? AND logical_date = ?
		ORDER BY updated_at DESC LIMIT 1`, ownerID, logicalDate)
}

func (r *SQLiteRepository) GetRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Record, error) {
	return r.queryMany(ctx, "get record range",
		`SELECT `+recordColumns+` FROM records WHERE owner_id = ? AND logical_date BETWEEN ? AND ?
		ORDER BY logical_date DESC, record_id DESC`, ownerID, start, end)
}

func (r *SQLiteRepository) GetPending(ctx context.Context) ([]*models.Record, error) {
	return r.queryMany(ctx, "get pending records",
		`SELECT `+recordColumns+` FROM records WHERE sync_state IN (?, ?)
		ORDER BY owner_id, logical_date, record_id`, models.SyncStatePending, models.SyncStateFailed)
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.Record) error {
	path, err := paths.Resolve(rec.OwnerID, rec.RecordID)
	if err != nil {
		return err
	}
	payload, err := models.EncodePayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", common.ErrValidation, err)
	}
	state := rec.SyncState
	if state == "" {
		state = models.SyncStatePending
	}
	version := rec.SchemaVersion
	if version == 0 {
		version = models.CurrentSchemaVersion
	}

	query := `INSERT INTO records (owner_id, record_id, path, payload, logical_date, created_at, updated_at,
			schema_version, sync_state, last_sync_attempt, sync_retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, record_id) DO UPDATE SET
			payload = excluded.payload,
			logical_date = excluded.logical_date,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			schema_version = excluded.schema_version,
			sync_state = excluded.sync_state,
			last_sync_attempt = excluded.last_sync_attempt,
			sync_retry_count = excluded.sync_retry_count`
	_, err = r.db.ExecContext(ctx, query, rec.OwnerID, rec.RecordID, path, payload, rec.LogicalDate,
		rec.CreatedAt, rec.UpdatedAt, version, string(state), rec.LastSyncAttempt, rec.SyncRetryCount)
	if err != nil {
		return dbErr("upsert record", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, recordID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE owner_id = ? AND record_id = ?`, ownerID, recordID)
	if err != nil {
		return dbErr("delete record", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ownerID, recordID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_state = ?, sync_retry_count = 0 WHERE owner_id = ? AND record_id = ?`,
		models.SyncStateSynced, ownerID, recordID)
	if err != nil {
		return dbErr("mark record synced", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkPending(ctx context.Context, ownerID, recordID string) error {
	return r.setState(ctx, ownerID, recordID, models.SyncStatePending)
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, ownerID, recordID string) error {
	return r.setState(ctx, ownerID, recordID, models.SyncStateFailed)
}

func (r *SQLiteRepository) setState(ctx context.Context, ownerID, recordID string, state models.SyncState) error {
	_, err := r.db.ExecContext(ctx, `UPDATE records SET sync_state = ? WHERE owner_id = ? AND record_id = ?`,
		state, ownerID, recordID)
	if err != nil {
		return dbErr("mark record "+string(state), err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetry(ctx context.Context, ownerID, recordID string, now int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_retry_count = sync_retry_count + 1, last_sync_attempt = ?
		WHERE owner_id = ? AND record_id = ?`, now, ownerID, recordID)
	if err != nil {
		return dbErr("increment retry", err)
	}
	return nil
}
