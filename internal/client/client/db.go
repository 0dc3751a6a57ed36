package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eunio/dailysync/internal/client/migrations"
	"github.com/eunio/dailysync/internal/common"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

var gooseUpContext = goose.UpContext

// RunMigrations applies the embedded schema. It is safe to call repeatedly.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%w: migrate local store: %v", common.ErrDatabase, err)
	}
	return nil
}

// InitDatabase opens the local SQLite store at dsn and migrates it.
// A single connection is kept so that every mutation is serialized by
// SQLite itself and ":memory:" databases are not split across connections.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrDatabase, dsn, err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
