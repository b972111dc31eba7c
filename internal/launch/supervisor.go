package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vk/fragmesh/internal/config"
	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fsutil"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/piddb"
)

// Supervisor materializes launch plans: it renders worker configs, creates
// log directories, starts processes, and records their PIDs for later
// health checks and shutdown.
type Supervisor struct {
	registry *piddb.Store
}

// NewSupervisor wires a supervisor onto the given process registry.
func NewSupervisor(registry *piddb.Store) *Supervisor {
	return &Supervisor{registry: registry}
}

// Start launches every worker in the plan computed from spec. Workers fail
// independently: a worker whose log directory, config file, or process
// cannot be prepared is reported in the joined error while the remaining
// workers still start. Already-started workers are never rolled back.
func (s *Supervisor) Start(ctx context.Context, spec Spec) (*Plan, error) {
	plan, err := BuildPlan(spec)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Launching worker group.", "objectID", plan.ObjectID, "workers", len(plan.Workers))

	// The rendered config is identical for every worker; each still gets
	// its own file so workers never share one path.
	rendered, err := config.RenderTemplateFile(spec.TemplatePath, plan.ObjectID.String(), spec.Workers)
	if err != nil {
		return nil, err
	}

	var errs []error
	started := 0
	for i := range plan.Workers {
		wp := &plan.Workers[i]
		if err := s.startWorker(ctx, spec, wp, rendered); err != nil {
			logger.Error("Worker failed to start.", "rank", wp.Rank, "error", err)
			appendFailureNote(wp, err)
			errs = append(errs, fmerr.Annotatef(err, "rank %d", wp.Rank))
			continue
		}
		started++
	}

	logger.Info("Worker group launch finished.", "objectID", plan.ObjectID, "started", started, "failed", len(errs))
	return plan, errors.Join(errs...)
}

// startWorker prepares one worker's disk state and spawns its process.
func (s *Supervisor) startWorker(ctx context.Context, spec Spec, wp *WorkerPlan, rendered []byte) error {
	logger := ctxlog.FromContext(ctx)

	if err := fsutil.EnsureDir(wp.LogDir); err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("creating log directory %s", wp.LogDir))
	}
	if err := fsutil.EnsureDir(filepath.Dir(wp.ConfigPath)); err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("creating config directory for %s", wp.ConfigPath))
	}
	if err := os.WriteFile(wp.ConfigPath, rendered, 0o644); err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("writing worker config %s", wp.ConfigPath))
	}

	stdout, err := os.Create(filepath.Join(wp.LogDir, "stdout.log"))
	if err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, "creating stdout log")
	}
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(wp.LogDir, "stderr.log"))
	if err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, "creating stderr log")
	}
	defer stderr.Close()

	cmd := exec.Command(spec.WorkerBin, wp.Args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), wp.Env...)
	if err := cmd.Start(); err != nil {
		return fmerr.Wrap(fmerr.KindInternal, err, fmt.Sprintf("starting %s", spec.WorkerBin))
	}

	rec := piddb.Record{
		ObjectID:   spec.ObjectID.String(),
		Rank:       wp.Rank,
		PID:        cmd.Process.Pid,
		LogDir:     wp.LogDir,
		ConfigPath: wp.ConfigPath,
		HealthPort: wp.HealthPort,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.registry.Put(rec); err != nil {
		return fmerr.Annotatef(err, "worker pid %d started but not recorded", cmd.Process.Pid)
	}

	// The supervisor does not wait on its children.
	_ = cmd.Process.Release()

	logger.Info("Worker started.", "rank", wp.Rank, "pid", rec.PID, "logDir", wp.LogDir)
	return nil
}

// appendFailureNote leaves a trace of a startup failure in the worker's own
// stderr log, best effort.
func appendFailureNote(wp *WorkerPlan, err error) {
	f, ferr := os.OpenFile(filepath.Join(wp.LogDir, "stderr.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if ferr != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "launch failed: %v\n", err)
}

// Stop sends SIGTERM to every recorded worker of the group and drops their
// records. Records of processes that are already gone are dropped too.
func (s *Supervisor) Stop(ctx context.Context, objectID objstore.ObjectID) (int, error) {
	logger := ctxlog.FromContext(ctx)
	recs, err := s.registry.List(objectID.String())
	if err != nil {
		return 0, err
	}

	signaled := 0
	var errs []error
	for _, rec := range recs {
		if err := signalProcess(rec.PID, syscall.SIGTERM); err != nil {
			logger.Warn("Worker did not accept SIGTERM.", "rank", rec.Rank, "pid", rec.PID, "error", err)
		} else {
			signaled++
		}
		if err := s.registry.Delete(rec.ObjectID, rec.Rank); err != nil {
			errs = append(errs, err)
		}
	}

	logger.Info("Worker group stopped.", "objectID", objectID, "signaled", signaled, "records", len(recs))
	return signaled, errors.Join(errs...)
}

// signalProcess delivers sig to pid.
func signalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

// ProcessAlive reports whether pid currently names a live process.
func ProcessAlive(pid int) bool {
	return signalProcess(pid, syscall.Signal(0)) == nil
}
