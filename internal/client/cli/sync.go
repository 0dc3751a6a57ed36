package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/migration"
	"github.com/eunio/dailysync/internal/common"
	"github.com/spf13/cobra"
)

func (r *runner) newSyncCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending records to the remote store",
		Long: `Runs one retry cycle for every pending record of the logged-in owner.
With --watch it keeps syncing every --interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, app *App, _ []string) error {
			if watch {
				return syncWatch(cmd, app)
			}
			return syncOnce(cmd, app)
		}),
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep syncing in the background until interrupted")
	return cmd
}

func syncOnce(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	owner, err := app.owner(ctx)
	if err != nil {
		return err
	}
	res, err := app.engine.SyncPending(ctx, owner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Synced %d of %d pending records\n", res.SuccessCount, res.TotalRecords)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  failed: %s\n", e)
	}
	for _, p := range res.DeadLettered {
		fmt.Fprintf(out, "  gave up on %s\n", p)
	}
	if res.FailureCount > 0 {
		return fmt.Errorf("%d records could not be synced", res.FailureCount)
	}
	return nil
}

func syncWatch(cmd *cobra.Command, app *App) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owner, err := app.owner(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Syncing every %s, press Ctrl+C to stop\n", app.config.SyncInterval)
	return app.engine.Run(ctx, owner, app.config.SyncInterval)
}

func (r *runner) newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload all pending records in batches",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, app *App, _ []string) error {
			ctx := cmd.Context()
			owner, err := app.owner(ctx)
			if err != nil {
				return err
			}
			res, err := app.engine.PushBatch(ctx, owner)
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d of %d pending records in %d batches\n",
				res.SyncedCount, res.TotalRecords, res.BatchesSent)
			return err
		}),
	}
}

func (r *runner) newMigrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy records from legacy remote paths to the current layout",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, app *App, _ []string) error {
			return migrate(cmd.Context(), cmd, app, dryRun)
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be copied without writing")
	return cmd
}

func migrate(ctx context.Context, cmd *cobra.Command, app *App, dryRun bool) error {
	owner, err := app.owner(ctx)
	if err != nil {
		return err
	}
	lister, ok := app.remote.(client.PathLister)
	if !ok {
		return fmt.Errorf("%w: the %s backend cannot list documents", common.ErrValidation, app.config.RemoteBackend)
	}
	store := struct {
		client.RemoteStore
		client.PathLister
	}{app.remote, lister}

	res, err := migration.NewMigrator(store, app.logger, migration.Options{DryRun: dryRun}).Run(ctx, owner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verb := "Migrated"
	if dryRun {
		verb = "Would migrate"
	}
	fmt.Fprintf(out, "%s %d records, skipped %d, failed %d\n", verb, res.MigratedCount, res.SkippedCount, res.ErrorCount)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  failed: %s\n", e)
	}
	if res.ErrorCount > 0 {
		return fmt.Errorf("%d records could not be migrated", res.ErrorCount)
	}
	return nil
}
