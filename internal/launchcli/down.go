package launchcli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/launch"
	"github.com/vk/fragmesh/internal/objstore"
)

// NewDownCommand creates the down command.
func NewDownCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down <object-id>",
		Short: "Stop a worker group",
		Long: `Send SIGTERM to every recorded worker of a group and drop their
registry records.

Example:
  fragmesh-launcher down o00000000000000ff`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDown(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runDown(cmd *cobra.Command, opts *RootOptions, rawID string) error {
	setupLogging(opts)
	ctx := ctxlog.WithLogger(cmd.Context(), slog.Default())

	oid, err := objstore.ParseObjectID(rawID)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid object id", err)
	}

	store, err := openRegistry(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	sup := launch.NewSupervisor(store)
	signaled, err := sup.Stop(ctx, oid)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("stopping group %s", oid), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "group %s: signaled %d workers\n", oid, signaled)
	return nil
}
