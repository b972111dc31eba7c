// Package launch starts and manages a group of worker processes serving one
// shared graph object. The per-worker launch plan (rank, log directory,
// config path, arguments, environment) is computed as plain data before
// anything is spawned, so the plan itself can be inspected and tested
// without starting processes.
package launch

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/config"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/objstore"
)

// Spec describes the worker group to launch.
type Spec struct {
	// ObjectID is the shared graph object the group serves.
	ObjectID objstore.ObjectID
	// Workers is how many processes to start.
	Workers int
	// BaseRank is the rank of the first worker; ranks are contiguous from it.
	BaseRank int
	// SocketPath is the object store spec every worker connects to. When
	// empty, workers fall back to the store_socket in their config file.
	SocketPath string
	// TemplatePath is the worker config template the supervisor renders.
	TemplatePath string
	// WorkDir is where per-worker log directories and config files go.
	WorkDir string
	// WorkerBin is the worker executable.
	WorkerBin string
	// HealthBasePort, when positive, gives worker rank r the health port
	// HealthBasePort + r.
	HealthBasePort int
	// ExtraEnv entries are appended to every worker's environment.
	ExtraEnv []string
}

// WorkerPlan is everything needed to start one worker process.
type WorkerPlan struct {
	Rank       int
	LogDir     string
	ConfigPath string
	Args       []string
	Env        []string
	HealthPort int
}

// Plan is the computed launch plan for a whole group.
type Plan struct {
	ObjectID objstore.ObjectID
	Workers  []WorkerPlan
}

// BuildPlan computes the launch plan for spec without touching the
// filesystem or starting anything.
func BuildPlan(spec Spec) (*Plan, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	oid := spec.ObjectID.String()
	token := comm.FlagToken(spec.ObjectID)
	plan := &Plan{
		ObjectID: spec.ObjectID,
		Workers:  make([]WorkerPlan, 0, spec.Workers),
	}
	for i := 0; i < spec.Workers; i++ {
		rank := spec.BaseRank + i
		ident := fmt.Sprintf("executor_%s_%d", oid, rank)
		logDir := filepath.Join(spec.WorkDir, "logs", ident)

		wp := WorkerPlan{
			Rank:       rank,
			LogDir:     logDir,
			ConfigPath: filepath.Join(spec.WorkDir, "conf", ident+".hcl"),
			Env: append([]string{
				config.EnvSocket + "=" + spec.SocketPath,
				config.EnvWorkerNum + "=" + strconv.Itoa(spec.Workers),
				config.EnvLogDir + "=" + logDir,
				config.EnvBaseRank + "=" + strconv.Itoa(spec.BaseRank),
				"GOTRACEBACK=all",
			}, spec.ExtraEnv...),
		}
		wp.Args = []string{"--config", wp.ConfigPath, token, strconv.Itoa(rank)}
		if spec.HealthBasePort > 0 {
			wp.HealthPort = spec.HealthBasePort + rank
		}
		plan.Workers = append(plan.Workers, wp)
	}
	return plan, nil
}

func (s Spec) validate() error {
	if s.ObjectID == objstore.NilObject {
		return fmerr.New(fmerr.KindInvalidArgument, "launch spec needs an object id")
	}
	if s.Workers < 1 {
		return fmerr.Newf(fmerr.KindInvalidArgument, "worker count %d must be at least 1", s.Workers)
	}
	if s.BaseRank < 0 {
		return fmerr.Newf(fmerr.KindInvalidArgument, "base rank %d must not be negative", s.BaseRank)
	}
	if s.WorkerBin == "" {
		return fmerr.New(fmerr.KindInvalidArgument, "launch spec needs a worker binary")
	}
	if s.TemplatePath == "" {
		return fmerr.New(fmerr.KindInvalidArgument, "launch spec needs a config template")
	}
	if s.WorkDir == "" {
		return fmerr.New(fmerr.KindInvalidArgument, "launch spec needs a work directory")
	}
	return nil
}
