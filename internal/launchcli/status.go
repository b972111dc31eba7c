package launchcli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/launch"
	"github.com/vk/fragmesh/internal/objstore"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Timeout time.Duration
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <object-id>",
		Short: "Check the health of a worker group",
		Long: `Probe every recorded worker of a group: whether its process is still
running and, when a health port was recorded, whether its health endpoint
answers.

Example:
  fragmesh-launcher status o00000000000000ff`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts, args[0])
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 2*time.Second, "health probe timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions, rawID string) error {
	setupLogging(opts.RootOptions)
	ctx := ctxlog.WithLogger(cmd.Context(), slog.Default())

	oid, err := objstore.ParseObjectID(rawID)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid object id", err)
	}

	store, err := openRegistry(opts.RootOptions)
	if err != nil {
		return err
	}
	defer store.Close()

	sup := launch.NewSupervisor(store)
	results, err := sup.CheckGroup(ctx, oid, opts.Timeout)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("checking group %s", oid), err)
	}

	out := cmd.OutOrStdout()
	dead := 0
	for _, h := range results {
		state := "healthy"
		switch {
		case !h.Alive:
			state = "dead"
			dead++
		case !h.Healthy:
			state = "alive"
		}
		if h.Detail != "" {
			fmt.Fprintf(out, "rank %d  pid %d  %s (%s)\n", h.Rank, h.PID, state, h.Detail)
		} else {
			fmt.Fprintf(out, "rank %d  pid %d  %s\n", h.Rank, h.PID, state)
		}
	}
	if dead > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d workers are not running", dead, len(results)))
	}
	return nil
}
