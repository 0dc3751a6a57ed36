package records

import (
	"context"

	"github.com/eunio/dailysync/internal/client/models"
)

// Repository is the local store contract used by the sync engine.
type Repository interface {
	// Get returns the record or nil if it does not exist.
	Get(ctx context.Context, ownerID, recordID string) (*models.Record, error)

	// GetByLogicalDate returns the owner's record for an epoch day, or nil.
	GetByLogicalDate(ctx context.Context, ownerID string, logicalDate int64) (*models.Record, error)

	// GetRange returns records with start <= logicalDate <= end, newest day first.
	GetRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Record, error)

	// Upsert inserts or fully overwrites a record, sync fields included.
	Upsert(ctx context.Context, rec *models.Record) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, ownerID, recordID string) error

	// MarkSynced sets SYNCED and resets the retry counter.
	MarkSynced(ctx context.Context, ownerID, recordID string) error
	MarkPending(ctx context.Context, ownerID, recordID string) error
	MarkFailed(ctx context.Context, ownerID, recordID string) error

	// IncrementRetry bumps the retry counter and stamps the attempt time.
	IncrementRetry(ctx context.Context, ownerID, recordID string, now int64) error

	// GetPending returns every PENDING or FAILED record of every owner.
	GetPending(ctx context.Context) ([]*models.Record, error)
}
