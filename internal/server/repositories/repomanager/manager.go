package repomanager

import (
	"context"
	"database/sql"

	"github.com/eunio/dailysync/internal/dbx"
	"github.com/eunio/dailysync/internal/server/repositories/documents"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction and migrates the schema.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Documents(db dbx.DBTX) documents.Repository
}
