package app

import (
	"context"
	"fmt"

	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/pipeline"
)

// Run executes the worker's main loop: serve health checks, then execute the
// configured plan, or hold the group open until the context is canceled when
// no plan is set.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.worker.HealthBasePort > 0 {
		a.startHealthcheckServer(a.worker.HealthBasePort + a.group.WorkerID())
	}

	if a.planPath == "" {
		a.logger.Info("No plan configured, worker is standing by.", "group", a.group.String())
		<-ctx.Done()
		a.logger.Info("🏁 Worker shutting down.")
		return nil
	}

	a.logger.Debug("Loading plan...", "path", a.planPath)
	plan, err := pipeline.LoadPlan(ctx, a.planPath)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	if plan.Len() > 0 {
		a.logger.Info("🚀 Starting plan execution...", "ops", plan.Len(), "group", a.group.String())
		runner := pipeline.NewRunner(a.invoker, a.manager, a.group, a.client, 0)
		if err := runner.Run(ctx, plan); err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		a.logger.Info("🏁 Execution finished.", "objects", a.manager.Len())
	} else {
		a.logger.Warn("No ops found in plan, execution not required.")
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}
