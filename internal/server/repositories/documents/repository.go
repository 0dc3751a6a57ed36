package documents

import (
	"context"

	"github.com/eunio/dailysync/internal/server/models"
)

// Repository stores documents by path.
//
// Contract:
//   - Get and Delete return common.ErrNotFound for an absent path.
//   - Upsert fully overwrites the document at doc.Path.
//   - SelectRange returns the owner's canonical documents with
//     start <= logical date <= end, newest day first.
//   - ListPaths returns every path starting with prefix, sorted.
type Repository interface {
	Get(ctx context.Context, path string) (*models.Document, error)
	Upsert(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, path string) error
	SelectRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Document, error)
	ListPaths(ctx context.Context, prefix string) ([]string, error)
}
