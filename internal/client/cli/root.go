package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/eunio/dailysync/internal/client/config"
	"github.com/eunio/dailysync/internal/timex"
	"github.com/spf13/cobra"
)

// runner builds a fresh App for every command invocation.
type runner struct {
	flags *config.Flags
	opts  appOptions
}

// NewRootCmd returns the dailysync command tree.
func NewRootCmd(version, buildDate string, opts ...Option) *cobra.Command {
	r := &runner{opts: appOptions{
		remoteFactory: DefaultRemoteFactory,
		clock:         timex.SystemClock(),
		stdin:         os.Stdin,
	}}
	for _, opt := range opts {
		opt(&r.opts)
	}

	root := &cobra.Command{
		Use:           "dailysync",
		Short:         "Offline-first daily log with background sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	r.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(r.newLoginCmd(), r.newLogoutCmd(), r.newStatusCmd())
	root.AddCommand(r.newSaveCmd(), r.newLoadCmd(), r.newRangeCmd(), r.newDeleteCmd())
	root.AddCommand(r.newSyncCmd(), r.newPushCmd(), r.newMigrateCmd())
	return root
}

type runFunc func(cmd *cobra.Command, app *App, args []string) error

// run loads the config, opens the App, runs fn and closes the App.
func (r *runner) run(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := r.flags.Load()
		if err != nil {
			return err
		}
		app, err := newApp(cmd.Context(), cfg, &r.opts)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, app.Close())
		}()
		return fn(cmd, app, args)
	}
}

func newVersionCmd(version, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dailysync %s (%s)\n", version, buildDate)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
