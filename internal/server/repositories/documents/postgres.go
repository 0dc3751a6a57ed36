// Package documents provides the PostgreSQL-backed document repository of
// the server.
package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/dbx"
	"github.com/eunio/dailysync/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, path string) (*models.Document, error) {
	query := `SELECT path, owner_id, record_id, legacy, logical_date, updated_at, body
		FROM documents WHERE path = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select document: %v", common.ErrDatabase, err)
	}
	return doc, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, doc *models.Document) error {
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return fmt.Errorf("%w: encode document body: %v", common.ErrValidation, err)
	}

	query := `
		INSERT INTO documents (path, owner_id, record_id, legacy, logical_date, updated_at, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (path)
		DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			record_id = EXCLUDED.record_id,
			legacy = EXCLUDED.legacy,
			logical_date = EXCLUDED.logical_date,
			updated_at = EXCLUDED.updated_at,
			body = EXCLUDED.body,
			stored_at = now();
	`
	if _, err := r.db.ExecContext(ctx, query,
		doc.Path, doc.OwnerID, doc.RecordID, doc.Legacy, doc.LogicalDate, doc.UpdatedAt, body); err != nil {
		return fmt.Errorf("%w: failed to upsert document: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, path string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("%w: failed to delete document: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected error: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	return nil
}

func (r *PostgresRepository) SelectRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Document, error) {
	query := `SELECT path, owner_id, record_id, legacy, logical_date, updated_at, body
		FROM documents
		WHERE owner_id = $1 AND NOT legacy AND logical_date BETWEEN $2 AND $3
		ORDER BY logical_date DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select documents: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan document: %v", common.ErrDatabase, err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate documents: %v", common.ErrDatabase, err)
	}
	return result, nil
}

func (r *PostgresRepository) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT path FROM documents WHERE starts_with(path, $1) ORDER BY path`, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list paths: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%w: failed to scan path: %v", common.ErrDatabase, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate paths: %v", common.ErrDatabase, err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	var (
		doc  models.Document
		body []byte
	)
	if err := s.Scan(&doc.Path, &doc.OwnerID, &doc.RecordID, &doc.Legacy, &doc.LogicalDate, &doc.UpdatedAt, &body); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &doc.Body); err != nil {
		return nil, fmt.Errorf("decode body of %s: %w", doc.Path, err)
	}
	return &doc, nil
}
