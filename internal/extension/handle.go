package extension

import (
	"context"
	"sync/atomic"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
)

// Handle owns one opened extension: its name plus the resolved entry-point
// table. Handles implement Provider, so callers never touch the table
// directly; every call first checks that the handle is still open, which is
// what keeps resolved entry points from outliving the extension they point
// into. Close is idempotent and invalidates all five entry points at once.
type Handle struct {
	name   string
	table  Table
	closed atomic.Bool
}

// NewHandle binds a provider into a handle, resolving all five entry points
// now rather than on first use.
func NewHandle(name string, p Provider) (*Handle, error) {
	if name == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "extension name must not be empty")
	}
	if p == nil {
		return nil, fmerr.Newf(fmerr.KindExtensionLoad, "extension %q has no provider", name)
	}
	return newHandle(name, tableOf(p))
}

func newHandle(name string, t Table) (*Handle, error) {
	if err := t.Validate(); err != nil {
		return nil, fmerr.Annotatef(err, "binding extension %q", name)
	}
	return &Handle{name: name, table: t}, nil
}

// Name returns the extension's registered name or module path base.
func (h *Handle) Name() string { return h.name }

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Close invalidates every resolved entry point. Operations after Close fail
// with an extension-load error.
func (h *Handle) Close() error {
	h.closed.Store(true)
	return nil
}

func (h *Handle) guard() error {
	if h.closed.Load() {
		return fmerr.Newf(fmerr.KindExtensionLoad, "extension %q is closed", h.name)
	}
	return nil
}

// LoadGraph implements Provider.
func (h *Handle) LoadGraph(ctx context.Context, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	return h.table.LoadGraph(ctx, group, client, graphName, p)
}

// AddVerticesToGraph implements Provider.
func (h *Handle) AddVerticesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	return h.table.AddVerticesToGraph(ctx, src, group, client, graphName, p)
}

// AddEdgesToGraph implements Provider.
func (h *Handle) AddEdgesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	return h.table.AddEdgesToGraph(ctx, src, group, client, graphName, p)
}

// ToArrowFragment implements Provider.
func (h *Handle) ToArrowFragment(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	return h.table.ToArrowFragment(ctx, client, group, src, dstGraphName)
}

// ToDynamicFragment implements Provider.
func (h *Handle) ToDynamicFragment(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	return h.table.ToDynamicFragment(ctx, group, src, dstGraphName)
}
