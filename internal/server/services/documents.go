// Package services contains the server-side business logic: owner-scoped
// access to stored documents and access token handling.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	cm "github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/dbx"
	"github.com/eunio/dailysync/internal/server/config"
	"github.com/eunio/dailysync/internal/server/models"
	"github.com/eunio/dailysync/internal/server/repositories/repomanager"
)

// PathBody is one item of a batch write.
type PathBody struct {
	Path string
	Body map[string]any
}

// DocumentService serves one owner's documents. Every method takes the
// authenticated owner id and refuses paths of other owners with
// common.ErrPermission.
type DocumentService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	maxBatchSize int
}

func NewDocumentService(db *sql.DB, repomanager repomanager.RepositoryManager, cfg *config.Config) *DocumentService {
	return &DocumentService{
		db:           db,
		repomanager:  repomanager,
		maxBatchSize: cfg.MaxBatchSize,
	}
}

// MaxBatchSize is the largest batch BatchSet accepts.
func (s *DocumentService) MaxBatchSize() int { return s.maxBatchSize }

// locate parses path in either scheme and checks that it belongs to ownerID.
func locate(ownerID, path string) (recordID string, legacy bool, err error) {
	owner, recordID, err := paths.Canonical.Parse(path)
	if err != nil {
		owner, recordID, err = paths.Legacy.Parse(path)
		if err != nil {
			return "", false, fmt.Errorf("%w: unrecognised document path %q", common.ErrValidation, path)
		}
		legacy = true
	}
	if owner != ownerID {
		return "", false, fmt.Errorf("%w: %s belongs to another owner", common.ErrPermission, path)
	}
	return recordID, legacy, nil
}

func newDocument(ownerID, path string, body map[string]any) (*models.Document, error) {
	recordID, legacy, err := locate(ownerID, path)
	if err != nil {
		return nil, err
	}
	rec, err := cm.FromStorage(ownerID, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrValidation, path, err)
	}
	if rec.RecordID != recordID {
		return nil, fmt.Errorf("%w: %s holds logId %q", common.ErrValidation, path, rec.RecordID)
	}
	return &models.Document{
		Path:        path,
		OwnerID:     ownerID,
		RecordID:    recordID,
		Legacy:      legacy,
		LogicalDate: rec.LogicalDate,
		UpdatedAt:   rec.UpdatedAt,
		Body:        body,
	}, nil
}

func (s *DocumentService) Get(ctx context.Context, ownerID, path string) (map[string]any, error) {
	if _, _, err := locate(ownerID, path); err != nil {
		return nil, err
	}
	doc, err := s.repomanager.Documents(s.db).Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return doc.Body, nil
}

// Set validates body and fully overwrites the document at path.
func (s *DocumentService) Set(ctx context.Context, ownerID, path string, body map[string]any) error {
	doc, err := newDocument(ownerID, path, body)
	if err != nil {
		return err
	}
	return s.repomanager.Documents(s.db).Upsert(ctx, doc)
}

func (s *DocumentService) Delete(ctx context.Context, ownerID, path string) error {
	if _, _, err := locate(ownerID, path); err != nil {
		return err
	}
	return s.repomanager.Documents(s.db).Delete(ctx, path)
}

// GetRange returns the owner's canonical documents whose logical date lies
// in [start, end], newest first.
func (s *DocumentService) GetRange(ctx context.Context, ownerID, rangeOwner string, start, end int64) ([]map[string]any, error) {
	if rangeOwner != ownerID {
		return nil, fmt.Errorf("%w: range of another owner", common.ErrPermission)
	}
	if start > end {
		return nil, fmt.Errorf("%w: start %d is after end %d", common.ErrValidation, start, end)
	}
	docs, err := s.repomanager.Documents(s.db).SelectRange(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Body)
	}
	return out, nil
}

// BatchSet writes all items in one transaction, or none of them.
func (s *DocumentService) BatchSet(ctx context.Context, ownerID string, items []PathBody) error {
	if len(items) > s.maxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds limit %d", common.ErrValidation, len(items), s.maxBatchSize)
	}
	docs := make([]*models.Document, 0, len(items))
	for _, it := range items {
		doc, err := newDocument(ownerID, it.Path, it.Body)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Documents(tx)
		for _, d := range docs {
			if err := repo.Upsert(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch of %d documents not written: %w", len(docs), err)
	}
	return nil
}

// ListPaths lists paths under prefix, which must lie inside one of the
// owner's namespaces.
func (s *DocumentService) ListPaths(ctx context.Context, ownerID, prefix string) ([]string, error) {
	canonical, err := paths.OwnerPrefix(ownerID)
	if err != nil {
		return nil, err
	}
	legacy, err := paths.LegacyOwnerPrefix(ownerID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(prefix, canonical) && !strings.HasPrefix(prefix, legacy) {
		return nil, fmt.Errorf("%w: prefix %q is outside the owner's documents", common.ErrPermission, prefix)
	}
	return s.repomanager.Documents(s.db).ListPaths(ctx, prefix)
}
