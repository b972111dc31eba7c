// Package config loads the worker process configuration. A worker reads one
// HCL file (usually rendered from the launch template by the supervisor),
// then lets a handful of environment variables set by the supervisor
// override or cross-check it.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/fmerr"
)

// Environment variable names the worker consumes. The launch supervisor
// sets these for every spawned process.
const (
	EnvSocket    = "FRAGMESH_IPC_SOCKET"
	EnvWorkerNum = "FRAGMESH_WORKER_NUM"
	EnvLogDir    = "FRAGMESH_LOG_DIR"
	EnvBaseRank  = "FRAGMESH_BASE_RANK"
)

// DefaultExtension is the built-in provider used when the config names none.
const DefaultExtension = "property"

// Worker is the configuration one executor process runs with.
type Worker struct {
	// ObjectID is the shared group identifier in its canonical hex form. It
	// must match the flag token the supervisor passes on the command line.
	ObjectID  string `hcl:"object_id"`
	WorkerNum int    `hcl:"worker_num"`

	StoreSocket   string `hcl:"store_socket,optional"`
	Extension     string `hcl:"extension,optional"`
	ExtensionPath string `hcl:"extension_path,optional"`
	PlanPath      string `hcl:"plan_path,optional"`

	LogDir    string `hcl:"log_dir,optional"`
	LogFormat string `hcl:"log_format,optional"`
	LogLevel  string `hcl:"log_level,optional"`

	HealthBasePort int `hcl:"health_base_port,optional"`
	BaseRank       int `hcl:"base_rank,optional"`
}

// LoadWorker reads, decodes, and validates the worker config at path,
// applying environment overrides on top.
func LoadWorker(ctx context.Context, path string) (*Worker, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading worker config.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, diags, fmt.Sprintf("failed to parse config file %s", path))
	}

	var w Worker
	if diags := gohcl.DecodeBody(file.Body, nil, &w); diags.HasErrors() {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, diags, fmt.Sprintf("failed to decode config file %s", path))
	}

	if err := w.applyEnv(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	logger.Debug("Worker config loaded.", "objectID", w.ObjectID, "workers", w.WorkerNum)
	return &w, nil
}

// applyEnv folds the supervisor-provided environment into the config. The
// worker count is never overridden: the supervisor rendered it into the
// config file itself, so a differing env value means the process was
// launched against the wrong file.
func (w *Worker) applyEnv() error {
	if v := os.Getenv(EnvSocket); v != "" {
		w.StoreSocket = v
	}
	if v := os.Getenv(EnvLogDir); v != "" {
		w.LogDir = v
	}
	if v := os.Getenv(EnvBaseRank); v != "" {
		base, err := strconv.Atoi(v)
		if err != nil {
			return fmerr.Newf(fmerr.KindInvalidArgument, "%s=%q is not a number", EnvBaseRank, v)
		}
		w.BaseRank = base
	}
	if v := os.Getenv(EnvWorkerNum); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return fmerr.Newf(fmerr.KindInvalidArgument, "%s=%q is not a number", EnvWorkerNum, v)
		}
		if num != w.WorkerNum {
			return fmerr.Newf(fmerr.KindInvalidArgument, "%s=%d disagrees with configured worker_num %d", EnvWorkerNum, num, w.WorkerNum)
		}
	}
	return nil
}

func (w *Worker) validate() error {
	if w.ObjectID == "" {
		return fmerr.New(fmerr.KindInvalidArgument, "object_id is required")
	}
	if w.WorkerNum < 1 {
		return fmerr.Newf(fmerr.KindInvalidArgument, "worker_num %d must be at least 1", w.WorkerNum)
	}
	if w.BaseRank < 0 {
		return fmerr.Newf(fmerr.KindInvalidArgument, "base_rank %d must not be negative", w.BaseRank)
	}
	if w.Extension != "" && w.ExtensionPath != "" {
		return fmerr.New(fmerr.KindInvalidArgument, "extension and extension_path are mutually exclusive")
	}
	if w.Extension == "" && w.ExtensionPath == "" {
		w.Extension = DefaultExtension
	}
	switch w.LogFormat {
	case "", "text", "json":
	default:
		return fmerr.Newf(fmerr.KindInvalidArgument, "invalid log_format %q: must be 'text' or 'json'", w.LogFormat)
	}
	switch w.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmerr.Newf(fmerr.KindInvalidArgument, "invalid log_level %q: must be 'debug', 'info', 'warn', or 'error'", w.LogLevel)
	}
	if w.HealthBasePort < 0 || w.HealthBasePort > 65535 {
		return fmerr.Newf(fmerr.KindInvalidArgument, "health_base_port %d is out of range", w.HealthBasePort)
	}
	return nil
}
