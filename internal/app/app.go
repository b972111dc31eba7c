package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/config"
	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/extension"
	"github.com/vk/fragmesh/internal/object"
	"github.com/vk/fragmesh/internal/objstore"
)

// App encapsulates one worker's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	worker   *config.Worker
	group    *comm.Spec
	client   objstore.Client
	manager  *object.Manager
	invoker  *object.GraphUtils
	planPath string
}

// NewApp is the constructor for one worker process. It returns a fully
// initialized App instance with its extension bound, store client connected,
// and group membership resolved. Startup errors are fatal and panic; the
// entrypoint recovers them into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, modules ...extension.Module) *App {
	// Bootstrap with the command-line settings; the config file may refine
	// them once loaded.
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	worker, err := config.LoadWorker(ctx, appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load worker config: %w", err))
	}

	level, format := appConfig.LogLevel, appConfig.LogFormat
	if level == "" {
		level = worker.LogLevel
	}
	if format == "" {
		format = worker.LogFormat
	}
	logger = newLogger(level, format, outW)
	ctx = ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// The flag token and the config file both name the group's object. A
	// mismatch means this process was launched against the wrong file.
	configured, err := objstore.ParseObjectID(worker.ObjectID)
	if err != nil {
		panic(fmt.Errorf("config names an invalid object_id: %w", err))
	}
	if configured != appConfig.ObjectID {
		panic(fmt.Errorf("flag token names object %s but the config file names %s", appConfig.ObjectID, configured))
	}

	group, err := comm.NewSpecWithBase(appConfig.Rank, worker.BaseRank, worker.WorkerNum)
	if err != nil {
		panic(fmt.Errorf("invalid worker group: %w", err))
	}
	logger.Debug("Worker group resolved.", "group", group.String())

	var client objstore.Client
	if worker.StoreSocket != "" {
		client, err = objstore.Open(worker.StoreSocket)
		if err != nil {
			panic(fmt.Errorf("failed to connect to the object store: %w", err))
		}
		logger.Debug("Store client connected.", "socket", worker.StoreSocket)
	} else {
		client = objstore.NewMemClient()
		logger.Debug("No store socket configured, using the in-process store.")
	}

	utilsID := "gu_" + appConfig.ObjectID.String()
	var invoker *object.GraphUtils
	if worker.ExtensionPath != "" {
		invoker, err = object.OpenGraphUtils(utilsID, worker.ExtensionPath)
	} else {
		if len(modules) == 0 {
			modules = builtinExtensions
		}
		reg := extension.NewRegistry(modules...)
		var handle *extension.Handle
		handle, err = reg.Open(worker.Extension)
		if err == nil {
			invoker, err = object.NewGraphUtils(utilsID, handle)
		}
	}
	if err != nil {
		// All five entry points must bind; a partially usable worker is
		// worse than a dead one.
		panic(err)
	}
	logger.Debug("Extension bound.", "extension", invoker.ExtensionName())

	manager := object.NewManager()
	if err := manager.Put(invoker); err != nil {
		panic(err)
	}

	planPath := appConfig.PlanPath
	if planPath == "" {
		planPath = worker.PlanPath
	}

	return &App{
		outW:     outW,
		logger:   logger,
		worker:   worker,
		group:    group,
		client:   client,
		manager:  manager,
		invoker:  invoker,
		planPath: planPath,
	}
}

// Close releases the worker's long-lived resources. Safe to call after Run
// has returned.
func (a *App) Close() error {
	return errors.Join(a.invoker.Close(), a.client.Close())
}

// Group returns the worker's resolved group view. This is primarily for testing.
func (a *App) Group() *comm.Spec { return a.group }

// Manager returns the worker's object manager. This is primarily for testing.
func (a *App) Manager() *object.Manager { return a.manager }

// Client returns the worker's store client. This is primarily for testing.
func (a *App) Client() objstore.Client { return a.client }
