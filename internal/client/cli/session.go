package cli

import (
	"fmt"
	"time"

	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/repositories/metadata"
	"github.com/spf13/cobra"
)

func (r *runner) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <ownerId>",
		Short: "Remember the owner and access token to sync as",
		Long: `Stores the owner id and its access token in the local database.
The token is taken from --token or read from the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			token := app.config.AccessToken
			if token == "" {
				var err error
				token, err = GetSecret(app.reader, "Access token", cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}
			if err := app.session.Login(ctx, args[0], token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", args[0])
			return nil
		}),
	}
}

func (r *runner) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved owner and token; local records are kept",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, app *App, _ []string) error {
			if err := app.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func (r *runner) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the owner, pending and failed records and the last sync time",
		Args:  cobra.NoArgs,
		RunE:  r.run(status),
	}
}

func status(cmd *cobra.Command, app *App, _ []string) error {
	ctx := cmd.Context()
	owner, err := app.owner(ctx)
	if err != nil {
		return err
	}

	all, err := app.records.GetPending(ctx)
	if err != nil {
		return err
	}
	var pending, failed int
	for _, rec := range all {
		if rec.OwnerID != owner {
			continue
		}
		switch rec.SyncState {
		case models.SyncStatePending:
			pending++
		case models.SyncStateFailed:
			failed++
		}
	}

	last, err := metadata.LastSyncAt(ctx, app.metadata, owner)
	if err != nil {
		return err
	}
	lastText := "never"
	if !last.IsZero() {
		lastText = last.UTC().Format(time.RFC3339)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Owner:     %s\n", owner)
	fmt.Fprintf(out, "Backend:   %s\n", app.config.RemoteBackend)
	fmt.Fprintf(out, "Pending:   %d\n", pending)
	fmt.Fprintf(out, "Failed:    %d\n", failed)
	fmt.Fprintf(out, "Last sync: %s\n", lastText)
	return nil
}
