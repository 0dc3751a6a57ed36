package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/eunio/dailysync/internal/common"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger adapts *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// FileOptions configures the rotated log file used by NewFileSlogLogger.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
	// Fallback receives the logs when Path is empty; nil means stdout.
	Fallback io.Writer
}

// NewFileSlogLogger returns a JSON logger writing to opts.Fallback, or to a
// size-rotated file when opts.Path is set. The returned closer releases
// the file and is a no-op otherwise.
func NewFileSlogLogger(opts FileOptions) (*SlogLogger, io.Closer) {
	var w io.Writer = os.Stdout
	if opts.Fallback != nil {
		w = opts.Fallback
	}
	var closer io.Closer = nopCloser{}

	if opts.Path != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		w = lj
		closer = lj
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return NewSlogLogger(slog.New(h)), closer
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, withOperationID(ctx, args)...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, withOperationID(ctx, args)...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, withOperationID(ctx, args)...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, withOperationID(ctx, args)...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}

// withOperationID appends the ctx correlation id, if any, as "opId".
func withOperationID(ctx context.Context, args []any) []any {
	if id := common.OperationID(ctx); id != "" {
		return append(args[:len(args):len(args)], "opId", id)
	}
	return args
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
