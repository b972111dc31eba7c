package object

import (
	"context"
	"sync"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/extension"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
)

// GraphUtils is the graph mutation invoker: a managed engine object owning
// one bound extension handle. Operations take the group spec and store
// client as arguments instead of capturing process-global singletons, so
// one process can drive several graph instances through separate invokers
// without interference.
//
// Every operation returns exactly one of a fragment wrapper or an error.
// Provider errors pass through with their kind intact; a provider returning
// neither value nor error, or a fragment without a committed store object,
// is reported as an internal error rather than handed to the caller.
type GraphUtils struct {
	id     string
	handle *extension.Handle
	rdv    *comm.Rendezvous

	mu       sync.Mutex
	inflight map[objstore.ObjectID]string
}

// Option configures an invoker at construction.
type Option func(*GraphUtils)

// WithRendezvous enables the optional cross-rank consistency check: every
// operation publishes a fingerprint of its inputs and waits for all ranks
// of the group to publish a matching one before invoking the entry point.
// Without it, issuing identical calls on every rank stays caller discipline.
func WithRendezvous(rdv *comm.Rendezvous) Option {
	return func(g *GraphUtils) { g.rdv = rdv }
}

// NewGraphUtils binds a provider into an invoker. All five entry points are
// resolved and validated here; a partially bound provider never constructs.
func NewGraphUtils(id string, p extension.Provider, opts ...Option) (*GraphUtils, error) {
	if id == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "invoker id must not be empty")
	}
	handle, ok := p.(*extension.Handle)
	if !ok {
		var err error
		handle, err = extension.NewHandle(id, p)
		if err != nil {
			return nil, err
		}
	}
	g := &GraphUtils{
		id:       id,
		handle:   handle,
		inflight: make(map[objstore.ObjectID]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// OpenGraphUtils loads a shared module from disk and binds it into an
// invoker, for environments that ship extensions as runtime artifacts.
func OpenGraphUtils(id, path string, opts ...Option) (*GraphUtils, error) {
	handle, err := extension.OpenSharedModule(path)
	if err != nil {
		return nil, err
	}
	return NewGraphUtils(id, handle, opts...)
}

// ID implements Object.
func (g *GraphUtils) ID() string { return g.id }

// Kind implements Object.
func (g *GraphUtils) Kind() Kind { return KindGraphUtils }

// ExtensionName returns the name of the bound extension.
func (g *GraphUtils) ExtensionName() string { return g.handle.Name() }

// Close invalidates the bound entry points; operations after Close fail
// with an extension-load error. Close is idempotent.
func (g *GraphUtils) Close() error {
	return g.handle.Close()
}

// LoadGraph builds a fresh partitioned fragment from the parameter bag and
// returns its wrapper once the extension committed it to the store.
func (g *GraphUtils) LoadGraph(ctx context.Context, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	if err := checkClient(client); err != nil {
		return nil, err
	}
	if graphName == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "graph name must not be empty")
	}
	if err := g.sync(ctx, extension.SymbolLoadGraph+"|"+graphName+"|"+p.Fingerprint()); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Invoking entry point.", "op", extension.SymbolLoadGraph, "graph", graphName, "rank", group.WorkerID())
	w, err := g.handle.LoadGraph(ctx, group, client, graphName, p)
	return finish(ctx, extension.SymbolLoadGraph, w, err)
}

// AddVerticesToGraph produces a new fragment incorporating additional
// vertices. The source fragment is untouched; concurrent mutations of one
// source object from this process are rejected, not serialized.
func (g *GraphUtils) AddVerticesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	return g.mutate(ctx, extension.SymbolAddVerticesToGraph, src, group, client, graphName, p, g.handle.AddVerticesToGraph)
}

// AddEdgesToGraph produces a new fragment incorporating additional edges,
// with the same contract as AddVerticesToGraph.
func (g *GraphUtils) AddEdgesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	return g.mutate(ctx, extension.SymbolAddEdgesToGraph, src, group, client, graphName, p, g.handle.AddEdgesToGraph)
}

// mutate is the shared flow of the two copy-on-write mutation operations.
func (g *GraphUtils) mutate(ctx context.Context, op string, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params, call extension.AddVerticesFunc) (*fragment.Wrapper, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	if err := checkClient(client); err != nil {
		return nil, err
	}
	if src == objstore.NilObject {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "source object id must not be nil")
	}
	if graphName == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "graph name must not be empty")
	}
	if err := g.acquire(src, op); err != nil {
		return nil, err
	}
	defer g.release(src)
	if err := g.sync(ctx, op+"|"+src.String()+"|"+graphName+"|"+p.Fingerprint()); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Invoking entry point.", "op", op, "source", src, "graph", graphName, "rank", group.WorkerID())
	w, err := call(ctx, src, group, client, graphName, p)
	return finish(ctx, op, w, err)
}

// toArrow is the enabled conversion path; the build-tagged ToArrowFragment
// decides whether it is reachable.
func (g *GraphUtils) toArrow(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	if err := checkClient(client); err != nil {
		return nil, err
	}
	if err := checkSource(src); err != nil {
		return nil, err
	}
	if dstGraphName == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "destination graph name must not be empty")
	}
	if err := g.sync(ctx, extension.SymbolToArrowFragment+"|"+src.ObjectID().String()+"|"+dstGraphName); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Invoking entry point.", "op", extension.SymbolToArrowFragment, "source", src.ObjectID(), "graph", dstGraphName, "rank", group.WorkerID())
	w, err := g.handle.ToArrowFragment(ctx, client, group, src, dstGraphName)
	return finish(ctx, extension.SymbolToArrowFragment, w, err)
}

// toDynamic is the enabled inverse conversion path. It takes no store
// client: the dynamic view re-wraps the source's committed object.
func (g *GraphUtils) toDynamic(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	if err := checkGroup(group); err != nil {
		return nil, err
	}
	if err := checkSource(src); err != nil {
		return nil, err
	}
	if dstGraphName == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "destination graph name must not be empty")
	}
	if err := g.sync(ctx, extension.SymbolToDynamicFragment+"|"+src.ObjectID().String()+"|"+dstGraphName); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Invoking entry point.", "op", extension.SymbolToDynamicFragment, "source", src.ObjectID(), "graph", dstGraphName, "rank", group.WorkerID())
	w, err := g.handle.ToDynamicFragment(ctx, group, src, dstGraphName)
	return finish(ctx, extension.SymbolToDynamicFragment, w, err)
}

// acquire registers src as having a mutation in flight.
func (g *GraphUtils) acquire(src objstore.ObjectID, op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if holder, busy := g.inflight[src]; busy {
		return fmerr.Newf(fmerr.KindInvalidOperation, "source fragment %s already has %s in flight", src, holder)
	}
	g.inflight[src] = op
	return nil
}

func (g *GraphUtils) release(src objstore.ObjectID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, src)
}

// sync runs the cross-rank consistency check when one is configured.
func (g *GraphUtils) sync(ctx context.Context, fingerprint string) error {
	if g.rdv == nil {
		return nil
	}
	return g.rdv.Sync(ctx, fingerprint)
}

// finish normalizes an entry point's dual return into exactly one of value
// or error. Provider errors pass through unchanged.
func finish(ctx context.Context, op string, w *fragment.Wrapper, err error) (*fragment.Wrapper, error) {
	log := ctxlog.FromContext(ctx)
	if err != nil {
		log.Debug("Entry point failed.", "op", op, "error", err)
		return nil, err
	}
	if w == nil {
		return nil, fmerr.Newf(fmerr.KindInternal, "entry point %s returned neither a fragment nor an error", op)
	}
	if w.ObjectID() == objstore.NilObject {
		return nil, fmerr.Newf(fmerr.KindInternal, "entry point %s returned a fragment with no committed object", op)
	}
	log.Debug("Entry point returned a fragment.", "op", op, "fragment", w.String())
	return w, nil
}

func checkGroup(group *comm.Spec) error {
	if group == nil {
		return fmerr.New(fmerr.KindInvalidArgument, "group spec must not be nil")
	}
	return nil
}

func checkClient(client objstore.Client) error {
	if client == nil {
		return fmerr.New(fmerr.KindInvalidArgument, "store client must not be nil")
	}
	return nil
}

func checkSource(src *fragment.Wrapper) error {
	if src == nil {
		return fmerr.New(fmerr.KindInvalidArgument, "source fragment must not be nil")
	}
	return nil
}
