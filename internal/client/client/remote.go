package client

import (
	"context"

	"github.com/eunio/dailysync/internal/client/models"
)

// PathRecord pairs a record with the path it is written to.
type PathRecord struct {
	Path   string
	Record *models.Record
}

// RemoteStore is an opaque key-value-by-path document store.
type RemoteStore interface {
	// Get returns nil, nil when no document exists at path.
	Get(ctx context.Context, path string) (*models.Record, error)
	// Set fully overwrites the document at path.
	Set(ctx context.Context, path string, rec *models.Record) error
	Delete(ctx context.Context, path string) error
	GetRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Record, error)
	// BatchSet is atomic only up to MaxBatchSize items; larger batches are rejected.
	BatchSet(ctx context.Context, items []PathRecord) error
	MaxBatchSize() int
}

// PathLister enumerates document paths under a prefix.
type PathLister interface {
	ListPaths(ctx context.Context, prefix string) ([]string, error)
}

// Pinger reports whether the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
