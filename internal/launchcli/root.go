// Package launchcli implements the fragmesh-launcher command tree: starting
// a worker group for a shared graph object, checking its health, and
// shutting it down. State between invocations lives in a process registry
// file under the launcher's working directory.
package launchcli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vk/fragmesh/internal/piddb"
)

// registryFile is the process registry database inside the work directory.
const registryFile = "pids.db"

// RootOptions holds global flags for all launcher commands.
type RootOptions struct {
	WorkDir string
	Verbose bool
}

// NewRootCommand creates the root command for the launcher CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fragmesh-launcher",
		Short: "Start and manage fragmesh worker groups",
		Long: "A supervisor for groups of fragmesh executor processes. Each group\n" +
			"serves one shared graph object; the launcher records every spawned\n" +
			"process so later invocations can inspect or stop the group.",
	}

	cmd.PersistentFlags().StringVarP(&opts.WorkDir, "workdir", "w", ".", "directory for the process registry, worker configs, and logs")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewUpCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewDownCommand(opts))

	return cmd
}

// setupLogging configures the process-wide logger from the global flags.
func setupLogging(opts *RootOptions) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openRegistry opens the process registry under the work directory.
func openRegistry(opts *RootOptions) (*piddb.Store, error) {
	store, err := piddb.Open(filepath.Join(opts.WorkDir, registryFile))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open process registry", err)
	}
	return store, nil
}
