package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/object"
	"github.com/vk/fragmesh/internal/objstore"
)

// defaultWorkers bounds how many independent chains execute at once.
const defaultWorkers = 4

// Runner executes plans against one invoker, installing every produced
// fragment into the object manager under its op's graph name.
type Runner struct {
	invoker *object.GraphUtils
	manager *object.Manager
	group   *comm.Spec
	client  objstore.Client
	workers int
}

// NewRunner wires a runner. A non-positive worker count falls back to the
// default pool size.
func NewRunner(invoker *object.GraphUtils, manager *object.Manager, group *comm.Spec, client objstore.Client, workers int) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Runner{
		invoker: invoker,
		manager: manager,
		group:   group,
		client:  client,
		workers: workers,
	}
}

// Run executes every op in the plan, honoring dependency order. Independent
// chains run concurrently; an op failure fails its whole downstream chain
// while unrelated chains keep going. A plan carries run state, so each plan
// value executes at most once.
func (r *Runner) Run(ctx context.Context, plan *Plan) error {
	logger := ctxlog.FromContext(ctx)
	if plan == nil || plan.Len() == 0 {
		logger.Warn("Plan is empty, nothing to execute.")
		return nil
	}

	readyChan := make(chan *node, len(plan.nodes))
	rootCount := 0
	for _, n := range plan.nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Found plan root ops.", "count", rootCount)

	var wg sync.WaitGroup
	wg.Add(len(plan.nodes))

	logger.Debug("Starting plan workers.", "workers", r.workers)
	for i := 0; i < r.workers; i++ {
		go r.worker(ctx, readyChan, &wg, i)
	}

	wg.Wait()
	close(readyChan)

	var failed []string
	var rootCause error
	failedTotal := 0
	for _, name := range plan.Names() {
		n := plan.nodes[name]
		if !n.is(stateFailed) {
			continue
		}
		failedTotal++
		logger.Error("Plan op failed or was skipped.", "op", name, "error", n.err)
		// A skipped op is a symptom; report the ops that actually failed.
		if n.err != nil && !strings.HasPrefix(n.err.Error(), "skipped") && !errors.Is(n.err, context.Canceled) {
			failed = append(failed, name)
			if rootCause == nil {
				rootCause = n.err
			}
		}
	}
	if rootCause != nil {
		return fmerr.Annotatef(rootCause, "plan execution failed for %s", strings.Join(failed, ", "))
	}
	if failedTotal > 0 {
		// Every failure was a cancellation symptom.
		return fmerr.Wrap(fmerr.KindInvalidOperation, ctx.Err(), "plan execution canceled")
	}
	return nil
}

// worker is the processing loop for one concurrent plan worker.
func (r *Runner) worker(ctx context.Context, readyChan chan *node, wg *sync.WaitGroup, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Plan worker started.", "workerID", workerID)

	for n := range readyChan {
		opLogger := logger.With("workerID", workerID, "op", n.op.Name)

		if ctx.Err() != nil {
			r.skipCanceled(ctx, n, wg)
			continue
		}

		opLogger.Debug("Executing plan op.", "kind", n.op.Kind)
		n.setState(stateRunning)
		w, err := r.executeOp(ctx, n)
		if err == nil {
			err = r.manager.PutFragment(w)
		}
		if err != nil {
			opLogger.Error("Plan op failed.", "error", err)
			n.setState(stateFailed)
			n.err = err
			r.skipDependents(ctx, n, wg)
			wg.Done()
			continue
		}

		n.result = w
		n.setState(stateDone)
		opLogger.Debug("Plan op succeeded.", "fragment", w.String())

		for _, dependent := range n.dependents {
			if dependent.depCount.Add(-1) == 0 {
				opLogger.Debug("Unlocking dependent op.", "dependent", dependent.op.Name)
				readyChan <- dependent
			}
		}
		wg.Done()
	}
	logger.Debug("Plan worker finished.", "workerID", workerID)
}

// skipDependents recursively marks all downstream ops as failed.
func (r *Runner) skipDependents(ctx context.Context, n *node, wg *sync.WaitGroup) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping op due to upstream failure.", "op", dependent.op.Name, "failed", n.op.Name)
			dependent.setState(stateFailed)
			dependent.err = fmt.Errorf("skipped due to upstream failure of '%s'", n.op.Name)
			wg.Done()
			r.skipDependents(ctx, dependent, wg)
		})
	}
}

// skipCanceled accounts for a queued op once the context is gone, taking
// its downstream chain with it.
func (r *Runner) skipCanceled(ctx context.Context, n *node, wg *sync.WaitGroup) {
	n.skipOnce.Do(func() {
		ctxlog.FromContext(ctx).Warn("Context canceled, skipping op.", "op", n.op.Name)
		n.setState(stateFailed)
		n.err = ctx.Err()
		wg.Done()
		r.skipDependents(ctx, n, wg)
	})
}

// executeOp dispatches one op to the invoker.
func (r *Runner) executeOp(ctx context.Context, n *node) (*fragment.Wrapper, error) {
	op := n.op
	switch op.Kind {
	case OpLoadGraph:
		return r.invoker.LoadGraph(ctx, r.group, r.client, op.Name, op.Params)
	case OpAddVertices:
		src, err := r.resolveSource(n)
		if err != nil {
			return nil, err
		}
		return r.invoker.AddVerticesToGraph(ctx, src.ObjectID(), r.group, r.client, op.Name, op.Params)
	case OpAddEdges:
		src, err := r.resolveSource(n)
		if err != nil {
			return nil, err
		}
		return r.invoker.AddEdgesToGraph(ctx, src.ObjectID(), r.group, r.client, op.Name, op.Params)
	case OpToArrow:
		src, err := r.resolveSource(n)
		if err != nil {
			return nil, err
		}
		return r.invoker.ToArrowFragment(ctx, r.client, r.group, src, op.Name)
	case OpToDynamic:
		src, err := r.resolveSource(n)
		if err != nil {
			return nil, err
		}
		return r.invoker.ToDynamicFragment(ctx, r.group, src, op.Name)
	}
	return nil, fmerr.Newf(fmerr.KindInternal, "unhandled op kind %q", op.Kind)
}

// resolveSource finds the upstream fragment: the in-plan producer's result
// when the source names a plan op, otherwise a fragment already installed
// in the object manager.
func (r *Runner) resolveSource(n *node) (*fragment.Wrapper, error) {
	if n.sourceNode != nil {
		if n.sourceNode.result == nil {
			return nil, fmerr.Newf(fmerr.KindInternal, "op %q completed without a result", n.sourceNode.op.Name)
		}
		return n.sourceNode.result, nil
	}
	return r.manager.GetFragment(n.op.Source)
}
