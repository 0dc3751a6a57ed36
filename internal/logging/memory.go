package logging

import (
	"context"
	"sync"
)

// Entry is one record captured by MemoryLogger.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// MemoryLogger keeps every entry in memory. It backs event assertions in
// tests and the CLI's "status" dump of the last sync.
type MemoryLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	base    []any
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (m *MemoryLogger) record(level, msg string, args []any) {
	fields := make(map[string]any, (len(m.base)+len(args))/2)
	all := append(append([]any{}, m.base...), args...)
	for i := 0; i+1 < len(all); i += 2 {
		if k, ok := all[i].(string); ok {
			fields[k] = all[i+1]
		}
	}
	m.mu.Lock()
	*m.entries = append(*m.entries, Entry{Level: level, Msg: msg, Fields: fields})
	m.mu.Unlock()
}

func (m *MemoryLogger) Debug(ctx context.Context, msg string, args ...any) {
	m.record("DEBUG", msg, withOperationID(ctx, args))
}

func (m *MemoryLogger) Info(ctx context.Context, msg string, args ...any) {
	m.record("INFO", msg, withOperationID(ctx, args))
}

func (m *MemoryLogger) Warn(ctx context.Context, msg string, args ...any) {
	m.record("WARN", msg, withOperationID(ctx, args))
}

func (m *MemoryLogger) Error(ctx context.Context, msg string, args ...any) {
	m.record("ERROR", msg, withOperationID(ctx, args))
}

// With shares the entry buffer with the parent.
func (m *MemoryLogger) With(args ...any) Logger {
	return &MemoryLogger{mu: m.mu, entries: m.entries, base: append(append([]any{}, m.base...), args...)}
}

// Entries returns a copy of everything logged so far.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(*m.entries))
	copy(out, *m.entries)
	return out
}

// Find returns the entries whose message equals msg.
func (m *MemoryLogger) Find(msg string) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}
