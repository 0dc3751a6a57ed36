// Package migration copies records stored under the deprecated
// daily_logs/{ownerId}/logs/ addresses to their canonical paths.
//
// Running it again is harmless: records that already exist at the
// canonical path are skipped, never overwritten.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/logging"
)

// Store is what the migrator needs from a remote store.
type Store interface {
	client.RemoteStore
	client.PathLister
}

type Options struct {
	// DryRun reports what would be copied without writing.
	DryRun bool
}

// Result contains statistics about one migration run.
type Result struct {
	MigratedCount int
	SkippedCount  int
	ErrorCount    int
	Errors        []string
}

type Migrator struct {
	store  Store
	logger logging.Logger
	opts   Options
}

func NewMigrator(store Store, l logging.Logger, opts Options) *Migrator {
	return &Migrator{store: store, logger: l.With("module", "migration"), opts: opts}
}

// Run migrates every legacy record of the owner. Failures of single records
// are collected in the result; only a failure to enumerate the legacy
// records is returned as error.
func (m *Migrator) Run(ctx context.Context, ownerID string) (Result, error) {
	started := time.Now()

	prefix, err := paths.LegacyOwnerPrefix(ownerID)
	if err != nil {
		return Result{}, err
	}
	legacyPaths, err := m.store.ListPaths(ctx, prefix)
	if err != nil {
		return Result{}, fmt.Errorf("list %s: %w", prefix, err)
	}

	var res Result
	for _, legacyPath := range legacyPaths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		migrated, err := m.migrateOne(ctx, ownerID, legacyPath)
		switch {
		case err != nil:
			res.ErrorCount++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", legacyPath, err))
			m.logger.Warn(ctx, "legacy record not migrated", "path", legacyPath, "error", err)
		case migrated:
			res.MigratedCount++
		default:
			res.SkippedCount++
		}
	}

	m.logger.Info(ctx, "MIGRATION_COMPLETE",
		"ownerId", ownerID,
		"migratedCount", res.MigratedCount,
		"skippedCount", res.SkippedCount,
		"errorCount", res.ErrorCount,
		"dryRun", m.opts.DryRun,
		"durationMs", time.Since(started).Milliseconds(),
	)
	return res, nil
}

// migrateOne reports false when the canonical copy already exists.
func (m *Migrator) migrateOne(ctx context.Context, ownerID, legacyPath string) (bool, error) {
	owner, recordID, err := paths.Legacy.Parse(legacyPath)
	if err != nil {
		return false, err
	}
	if owner != ownerID {
		return false, fmt.Errorf("path belongs to owner %q", owner)
	}
	canonical, err := paths.Resolve(owner, recordID)
	if err != nil {
		return false, err
	}

	existing, err := m.store.Get(ctx, canonical)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", canonical, err)
	}
	if existing != nil {
		m.logger.Debug(ctx, "canonical record exists, skipped", "path", canonical)
		return false, nil
	}

	rec, err := m.store.Get(ctx, legacyPath)
	if err != nil {
		return false, fmt.Errorf("read: %w", err)
	}
	if rec == nil {
		return false, fmt.Errorf("legacy record disappeared")
	}
	rec.OwnerID = owner

	if m.opts.DryRun {
		m.logger.Info(ctx, "would migrate", "from", legacyPath, "to", canonical)
		return true, nil
	}
	if err := m.store.Set(ctx, canonical, rec); err != nil {
		return false, fmt.Errorf("write %s: %w", canonical, err)
	}
	m.logger.Debug(ctx, "migrated", "from", legacyPath, "to", canonical)
	return true, nil
}
