// Package records is the local, durable store of daily log records.
//
// Every mutating call is a single autocommitted statement, so a change is on
// disk once the call returns; the sync engine relies on that for its
// offline-first guarantee. Each row also stores the path computed by
// internal/client/paths, the same address the remote store uses.
//
// Lookups of absent records return (nil, nil). Driver failures are wrapped
// with common.ErrDatabase.
//
// Typical usage:
//
//	repo := records.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, rec)
//	got, _ := repo.Get(ctx, "u1", "2025-01-10")
//	pending, _ := repo.GetPending(ctx)
package records
