// Package models defines the client-side record model synchronized between
// the local store and the remote document store.
package models

import (
	"log/slog"
	"time"
)

// SyncState is local-only bookkeeping; it is never written remotely.
type SyncState string

const (
	SyncStatePending SyncState = "PENDING"
	SyncStateSynced  SyncState = "SYNCED"
	SyncStateFailed  SyncState = "FAILED"
)

// CurrentSchemaVersion is stamped on every record written by this build.
const CurrentSchemaVersion = 1

const secondsPerDay = 24 * 60 * 60

// Record is one day's log for one owner.
type Record struct {
	// OwnerID identifies the data owner. Never empty.
	OwnerID string

	// RecordID is unique within the owner's namespace. By convention it is
	// the logical date formatted as yyyy-MM-dd (see RecordIDForDate), so two
	// devices writing the same day collide on the same record.
	RecordID string

	// Payload holds the optional domain fields. Nil values are dropped
	// from every serialized form.
	Payload map[string]any

	// LogicalDate is the record's day as days since 1970-01-01 UTC.
	LogicalDate int64

	// CreatedAt is set once, in Unix seconds.
	CreatedAt int64
	// UpdatedAt is refreshed on every write, in Unix seconds. It is the only
	// input to conflict resolution.
	UpdatedAt int64

	// SchemaVersion starts at 1 and is always present.
	SchemaVersion int

	SyncState       SyncState
	LastSyncAttempt *int64
	SyncRetryCount  int
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		c.Payload = clonePayload(r.Payload)
	}
	if r.LastSyncAttempt != nil {
		v := *r.LastSyncAttempt
		c.LastSyncAttempt = &v
	}
	return &c
}

// LogValue renders the whole record, payload included, so that conflict
// candidates can be reconstructed from logs alone.
func (r *Record) LogValue() slog.Value {
	if r == nil {
		return slog.StringValue("<nil>")
	}
	attrs := []slog.Attr{
		slog.String("ownerId", r.OwnerID),
		slog.String("recordId", r.RecordID),
		slog.Int64("logicalDate", r.LogicalDate),
		slog.Int64("createdAt", r.CreatedAt),
		slog.Int64("updatedAt", r.UpdatedAt),
		slog.Int("v", r.SchemaVersion),
		slog.String("syncState", string(r.SyncState)),
		slog.Int("syncRetryCount", r.SyncRetryCount),
		slog.Any("payload", r.Payload),
	}
	if r.LastSyncAttempt != nil {
		attrs = append(attrs, slog.Int64("lastSyncAttempt", *r.LastSyncAttempt))
	}
	return slog.GroupValue(attrs...)
}

// EpochDays converts t to whole days since the Unix epoch in UTC.
func EpochDays(t time.Time) int64 {
	s := t.UTC().Unix()
	d := s / secondsPerDay
	if s%secondsPerDay < 0 {
		d--
	}
	return d
}

// DateOf returns midnight UTC of the given epoch day.
func DateOf(epochDays int64) time.Time {
	return time.Unix(epochDays*secondsPerDay, 0).UTC()
}

// RecordIDForDate formats an epoch day as yyyy-MM-dd.
func RecordIDForDate(epochDays int64) string {
	return DateOf(epochDays).Format(time.DateOnly)
}

// ParseRecordID is the inverse of RecordIDForDate.
func ParseRecordID(id string) (int64, error) {
	t, err := time.ParseInLocation(time.DateOnly, id, time.UTC)
	if err != nil {
		return 0, err
	}
	return EpochDays(t), nil
}
