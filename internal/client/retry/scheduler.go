// Package retry drives the bounded, exponentially backed-off remote write
// loop for a single record.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/logging"
	"github.com/eunio/dailysync/internal/timex"
)

// ErrDeadLettered marks a record that was moved to FAILED because retrying
// it is hopeless or has gone on too long.
var ErrDeadLettered = errors.New("record dead-lettered")

type Config struct {
	// MaxAttempts per AttemptWithBackoff call, the first attempt included.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; it doubles afterwards.
	BaseDelay time.Duration
	// DeadLetterThreshold is the cumulative SyncRetryCount at which a record
	// is marked FAILED. Zero disables the threshold.
	DeadLetterThreshold int
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 5, BaseDelay: time.Second, DeadLetterThreshold: 25}
}

// Store is the part of the local store the scheduler updates.
type Store interface {
	MarkSynced(ctx context.Context, ownerID, recordID string) error
	MarkPending(ctx context.Context, ownerID, recordID string) error
	MarkFailed(ctx context.Context, ownerID, recordID string) error
	IncrementRetry(ctx context.Context, ownerID, recordID string, now int64) error
}

// WriteFunc performs one remote write of rec.
type WriteFunc func(ctx context.Context, rec *models.Record) error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Scheduler struct {
	cfg    Config
	store  Store
	clock  timex.Clock
	logger logging.Logger
	sleep  SleepFunc
}

type Option func(*Scheduler)

// WithSleep replaces the real timer, typically with a recorder in tests.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

func NewScheduler(cfg Config, store Store, clock timex.Clock, l logging.Logger, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	s := &Scheduler{
		cfg:    cfg,
		store:  store,
		clock:  clock,
		logger: l.With("module", "retry"),
		sleep:  sleepContext,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) Config() Config { return s.cfg }

// MaxDelay caps the backoff between two attempts.
const MaxDelay = time.Hour

// Delay is the wait before the given attempt: zero for the first, then
// base * 2^(attempt-2), capped at MaxDelay.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 2 || base <= 0 {
		return 0
	}
	d := base
	for i := 2; i < attempt; i++ {
		if d >= MaxDelay/2 {
			return MaxDelay
		}
		d <<= 1
	}
	return min(d, MaxDelay)
}

// Guard serializes one attempt with other writers of the same record. It
// returns the record as currently stored together with a release func, or
// a nil record when there is nothing left to write (deleted or already
// SYNCED). release must be called exactly once when current is non-nil.
type Guard func(ctx context.Context, rec *models.Record) (current *models.Record, release func(), err error)

func unguarded(_ context.Context, rec *models.Record) (*models.Record, func(), error) {
	return rec, func() {}, nil
}

type attemptConfig struct {
	guard Guard
}

type AttemptOption func(*attemptConfig)

// WithGuard runs every attempt and the final dead-letter step under g.
// Backoff sleeps happen outside it.
func WithGuard(g Guard) AttemptOption {
	return func(c *attemptConfig) { c.guard = g }
}

// AttemptWithBackoff calls write up to MaxAttempts times. Every failure bumps
// the record's retry counter; a success marks it SYNCED and stops. Errors
// that cannot succeed on repetition stop the loop early.
//
// When the loop gives up, the record is dead-lettered (FAILED plus a
// RETRY_DEAD_LETTER event) if the last error was not retryable or the
// cumulative retry count reached DeadLetterThreshold; the returned error
// then wraps ErrDeadLettered. Either way the record stays eligible for the
// next sync pass.
//
// With a Guard each attempt writes the record as stored at that moment, and
// the loop ends quietly once the guard reports nothing left to write.
func (s *Scheduler) AttemptWithBackoff(ctx context.Context, rec *models.Record, write WriteFunc, opts ...AttemptOption) error {
	path, err := paths.Resolve(rec.OwnerID, rec.RecordID)
	if err != nil {
		return err
	}
	cfg := attemptConfig{guard: unguarded}
	for _, o := range opts {
		o(&cfg)
	}

	var (
		lastErr  error
		last     = rec
		failures int
		// failures since last was read
		unseen  int
		revived bool
	)
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		delay := Delay(s.cfg.BaseDelay, attempt)
		if delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return fmt.Errorf("retry of %s interrupted after %d attempts: %w", path, attempt-1, err)
			}
		}

		current, release, err := cfg.guard(ctx, rec)
		if err != nil {
			return err
		}
		if current == nil {
			s.logger.Debug(ctx, "RETRY_SUPERSEDED", "recordId", rec.RecordID, "attempt", attempt, "path", path)
			return nil
		}
		if current != last {
			last, unseen = current, 0
		}

		lastErr, err = s.attempt(ctx, current, write, !revived)
		release()
		if err != nil {
			return err
		}
		revived = true
		if lastErr == nil {
			s.logger.Info(ctx, "RETRY_SUCCESS", "recordId", rec.RecordID, "attempt", attempt, "path", path)
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry of %s interrupted: %w", path, ctx.Err())
		}

		failures++
		unseen++
		s.logger.Warn(ctx, "RETRY_ATTEMPT",
			"recordId", rec.RecordID,
			"attempt", attempt,
			"maxAttempts", s.cfg.MaxAttempts,
			"delayMs", delay.Milliseconds(),
			"error", lastErr.Error(),
			"kind", common.KindOf(lastErr),
		)

		if !common.IsRetryable(lastErr) {
			break
		}
	}

	s.logger.Error(ctx, "RETRY_EXHAUSTED",
		"recordId", rec.RecordID,
		"maxAttempts", s.cfg.MaxAttempts,
		"attempts", failures,
		"error", lastErr.Error(),
	)

	return s.deadLetter(ctx, cfg.guard, path, last, last.SyncRetryCount+unseen, failures, lastErr)
}

// attempt performs one write and records its outcome. writeErr is the
// remote's answer; err is a local store failure.
func (s *Scheduler) attempt(ctx context.Context, rec *models.Record, write WriteFunc, first bool) (writeErr, err error) {
	if first && rec.SyncState == models.SyncStateFailed {
		if err := s.store.MarkPending(ctx, rec.OwnerID, rec.RecordID); err != nil {
			return nil, err
		}
	}
	if writeErr = write(ctx, rec); writeErr == nil {
		return nil, s.store.MarkSynced(ctx, rec.OwnerID, rec.RecordID)
	}
	if ctx.Err() != nil {
		return writeErr, nil
	}
	return writeErr, s.store.IncrementRetry(ctx, rec.OwnerID, rec.RecordID, s.clock.Now().Unix())
}

// deadLetter moves last to FAILED when retrying it is hopeless or has gone
// on too long. A record replaced while the loop ran is left to its own
// writer.
func (s *Scheduler) deadLetter(ctx context.Context, guard Guard, path string, last *models.Record, cumulative, failures int, lastErr error) error {
	exhausted := fmt.Errorf("%s: %d attempts failed: %w", path, failures, lastErr)

	hopeless := !common.IsRetryable(lastErr)
	tooMany := s.cfg.DeadLetterThreshold > 0 && cumulative >= s.cfg.DeadLetterThreshold
	if !hopeless && !tooMany {
		return exhausted
	}

	current, release, err := guard(ctx, last)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	defer release()
	if current.UpdatedAt != last.UpdatedAt {
		return exhausted
	}

	if err := s.store.MarkFailed(ctx, last.OwnerID, last.RecordID); err != nil {
		return err
	}
	s.logger.Error(ctx, "RETRY_DEAD_LETTER",
		"recordId", last.RecordID,
		"path", path,
		"syncRetryCount", cumulative,
		"kind", common.KindOf(lastErr),
		"error", lastErr.Error(),
	)
	return fmt.Errorf("%w: %s after %d failed attempts: %w", ErrDeadLettered, path, cumulative, lastErr)
}
