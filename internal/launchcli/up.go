package launchcli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/launch"
	"github.com/vk/fragmesh/internal/objstore"
)

// UpOptions holds flags for the up command.
type UpOptions struct {
	*RootOptions
	ObjectID       string
	Workers        int
	BaseRank       int
	Socket         string
	Template       string
	WorkerBin      string
	HealthBasePort int
}

// NewUpCommand creates the up command.
func NewUpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start a worker group",
		Long: `Start one worker process per rank for a shared graph object.

The launcher renders the config template for the group, creates a log
directory per worker, starts the worker binary with its rank and config,
and records every spawned PID in the registry.

Example:
  fragmesh-launcher up --workers 4 --template worker.hcl.tpl --worker-bin ./fragmesh-executor
  fragmesh-launcher up --object-id o00000000000000ff --workers 4 --base-rank 2 --template worker.hcl.tpl --worker-bin ./fragmesh-executor`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ObjectID, "object-id", "", "shared object id; generated when empty")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "n", 4, "number of worker processes")
	cmd.Flags().IntVar(&opts.BaseRank, "base-rank", 0, "rank of the first worker")
	cmd.Flags().StringVar(&opts.Socket, "socket", "", "object store spec for workers, e.g. file:///var/run/fragmesh; empty lets each worker use its config")
	cmd.Flags().StringVar(&opts.Template, "template", "", "worker config template (required)")
	cmd.Flags().StringVar(&opts.WorkerBin, "worker-bin", "", "worker executable (required)")
	cmd.Flags().IntVar(&opts.HealthBasePort, "health-base-port", 0, "base port for worker health endpoints; 0 disables")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("worker-bin")

	return cmd
}

func runUp(cmd *cobra.Command, opts *UpOptions) error {
	setupLogging(opts.RootOptions)
	ctx := ctxlog.WithLogger(cmd.Context(), slog.Default())

	oid := objstore.RandomObjectID()
	if opts.ObjectID != "" {
		parsed, err := objstore.ParseObjectID(opts.ObjectID)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid object id", err)
		}
		oid = parsed
	}

	store, err := openRegistry(opts.RootOptions)
	if err != nil {
		return err
	}
	defer store.Close()

	sup := launch.NewSupervisor(store)
	plan, err := sup.Start(ctx, launch.Spec{
		ObjectID:       oid,
		Workers:        opts.Workers,
		BaseRank:       opts.BaseRank,
		SocketPath:     opts.Socket,
		TemplatePath:   opts.Template,
		WorkDir:        opts.WorkDir,
		WorkerBin:      opts.WorkerBin,
		HealthBasePort: opts.HealthBasePort,
	})
	if err != nil {
		// Started workers stay up and recorded; only the failures are fatal.
		return WrapExitError(ExitFailure, fmt.Sprintf("group %s started with failures", oid), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "group %s: started %d workers\n", oid, len(plan.Workers))
	recs, err := store.List(oid.String())
	if err != nil {
		return WrapExitError(ExitCommandError, "reading back the registry", err)
	}
	for _, rec := range recs {
		fmt.Fprintf(out, "  rank %d  pid %d  log %s\n", rec.Rank, rec.PID, rec.LogDir)
	}
	return nil
}
