package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/config"
	"github.com/eunio/dailysync/internal/client/conflict"
	"github.com/eunio/dailysync/internal/client/repositories/metadata"
	"github.com/eunio/dailysync/internal/client/repositories/records"
	"github.com/eunio/dailysync/internal/client/retry"
	"github.com/eunio/dailysync/internal/client/services"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/filex"
	"github.com/eunio/dailysync/internal/logging"
	"github.com/eunio/dailysync/internal/timex"
)

// RemoteFactory builds the remote store for the configured backend.
type RemoteFactory func(ctx context.Context, cfg *config.Config, accessToken string) (client.RemoteStore, error)

// DefaultRemoteFactory dials the gRPC server or opens the S3 bucket.
func DefaultRemoteFactory(ctx context.Context, cfg *config.Config, accessToken string) (client.RemoteStore, error) {
	switch cfg.RemoteBackend {
	case config.BackendS3:
		return client.NewS3Store(ctx, client.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
	default:
		return client.NewGRPCClient(cfg.ServerEndpointAddr, accessToken)
	}
}

// App holds everything a command needs. It is built once per invocation.
type App struct {
	config   *config.Config
	db       *sql.DB
	records  records.Repository
	metadata metadata.Repository
	session  services.SessionService
	remote   client.RemoteStore
	engine   *services.SyncEngine
	logger   logging.Logger
	clock    timex.Clock
	reader   *bufio.Reader

	closers []io.Closer
}

type appOptions struct {
	remoteFactory RemoteFactory
	clock         timex.Clock
	logger        logging.Logger
	stdin         io.Reader
	retryOptions  []retry.Option
}

// Option customizes how NewRootCmd builds the App.
type Option func(*appOptions)

func WithRemoteFactory(f RemoteFactory) Option {
	return func(o *appOptions) { o.remoteFactory = f }
}

func WithClock(c timex.Clock) Option {
	return func(o *appOptions) { o.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

func WithStdin(r io.Reader) Option {
	return func(o *appOptions) { o.stdin = r }
}

// WithRetryOptions is passed through to the retry scheduler.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(o *appOptions) { o.retryOptions = opts }
}

func buildLogger(cfg *config.Config) (logging.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("%w: log level %q: %v", common.ErrValidation, cfg.LogLevel, err)
	}
	l, closer := logging.NewFileSlogLogger(logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      level,
		Fallback:   os.Stderr,
	})
	return l, closer, nil
}

// newApp opens the local database and wires the sync engine.
func newApp(ctx context.Context, cfg *config.Config, o *appOptions) (_ *App, err error) {
	app := &App{config: cfg, clock: o.clock, reader: bufio.NewReader(o.stdin)}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	app.logger = o.logger
	if app.logger == nil {
		l, closer, err := buildLogger(cfg)
		if err != nil {
			return nil, err
		}
		app.logger = l
		app.closers = append(app.closers, closer)
	}

	if err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db)

	app.records = records.NewSQLiteRepository(db)
	app.metadata = metadata.NewSQLiteRepository(db)
	app.session = services.NewSessionService(db)

	token := cfg.AccessToken
	if token == "" {
		token, err = metadata.AccessToken(ctx, app.metadata)
		if err != nil {
			return nil, err
		}
	}

	remote, err := o.remoteFactory(ctx, cfg, token)
	if err != nil {
		return nil, fmt.Errorf("error creating remote store: %w", err)
	}
	app.remote = remote
	if c, ok := remote.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	scheduler := retry.NewScheduler(retry.Config{
		MaxAttempts:         cfg.RetryMaxAttempts,
		BaseDelay:           cfg.RetryBaseDelay,
		DeadLetterThreshold: cfg.DeadLetterThreshold,
	}, app.records, app.clock, app.logger, o.retryOptions...)

	app.engine = services.NewSyncEngine(
		app.records,
		remote,
		conflict.NewResolver(app.logger),
		scheduler,
		app.clock,
		app.logger,
		services.EngineConfig{RemoteTimeout: cfg.RemoteTimeout, Parallelism: cfg.SyncParallelism},
		services.WithMetadata(app.metadata),
	)
	return app, nil
}

// Close releases the remote connection, the database and the log file,
// in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// owner returns the logged-in owner id.
func (a *App) owner(ctx context.Context) (string, error) {
	s, err := a.session.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("%w (run \"dailysync login\" first)", err)
	}
	return s.OwnerID, nil
}
