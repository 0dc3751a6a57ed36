// Package server wires configuration, storage, and the gRPC document store
// into a runnable process with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/logging"
	"github.com/eunio/dailysync/internal/server/config"
	"github.com/eunio/dailysync/internal/server/repositories/repomanager"
	"github.com/eunio/dailysync/internal/server/services"

	gs "github.com/eunio/dailysync/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	out         io.Writer
	openDB      func(ctx context.Context, dsn string) (*sql.DB, error)
	repomanager repomanager.RepositoryManager
}

func NewApp(c *config.Config) (*App, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", common.ErrValidation, c.LogLevel)
	}
	slog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	return &App{
		config:      c,
		logger:      logging.NewSlogLogger(slog),
		out:         os.Stdout,
		openDB:      repomanager.OpenPostgres,
		repomanager: repomanager.NewPostgresRepositoryManager(),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// issueToken prints an access token for the configured owner.
func (app *App) issueToken() error {
	token, err := services.NewAuthService(app.config).IssueToken(app.config.IssueTokenFor)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, token)
	return err
}

// Run serves until ctx is cancelled or a termination signal arrives. With
// IssueTokenFor set it only prints a token.
func (app *App) Run(ctx context.Context) error {
	if app.config.IssueTokenFor != "" {
		return app.issueToken()
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	db, err := app.openDB(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			app.logger.Warn(ctx, "db close error", "error", err)
		}
	}()

	if err := app.repomanager.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	documents := services.NewDocumentService(db, app.repomanager, app.config)
	auth := services.NewAuthService(app.config)
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, documents, auth)

	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			runErr = err
			cancelFunc()
		}
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
	return runErr
}
