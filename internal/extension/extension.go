// Package extension defines the pluggable contract for graph construction
// and conversion routines. A provider implements five entry points; the
// registry binds named providers compiled into the binary, and the shared
// module adapter resolves the same five entry points from a plugin loaded at
// runtime. Either way, every entry point is bound when the handle is opened,
// so a missing capability is a startup failure instead of a surprise on
// first use.
package extension

import (
	"context"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
)

// The entry points every extension must provide, by exact exported name.
const (
	SymbolLoadGraph          = "LoadGraph"
	SymbolAddVerticesToGraph = "AddVerticesToGraph"
	SymbolAddEdgesToGraph    = "AddEdgesToGraph"
	SymbolToArrowFragment    = "ToArrowFragment"
	SymbolToDynamicFragment  = "ToDynamicFragment"
)

// Symbols returns the required entry-point names in resolution order.
func Symbols() []string {
	return []string{
		SymbolLoadGraph,
		SymbolAddVerticesToGraph,
		SymbolAddEdgesToGraph,
		SymbolToArrowFragment,
		SymbolToDynamicFragment,
	}
}

// LoadGraphFunc builds a fresh partitioned fragment from the parameter bag
// (typically file paths) and commits it to the store before returning.
type LoadGraphFunc func(ctx context.Context, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error)

// AddVerticesFunc produces a new fragment incorporating additional vertices.
// The source fragment is untouched; fragments are copy-on-write.
type AddVerticesFunc func(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error)

// AddEdgesFunc produces a new fragment incorporating additional edges, with
// the same copy-on-write contract as AddVerticesFunc.
type AddEdgesFunc func(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error)

// ToArrowFunc converts a dynamic fragment into a columnar one, committing
// the new representation to the store.
type ToArrowFunc func(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error)

// ToDynamicFunc is the inverse conversion. It takes no store client: the
// dynamic view re-wraps the source fragment's committed object rather than
// committing a new one.
type ToDynamicFunc func(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error)

// Provider is the capability set one extension implements. All five entry
// points are mandatory; a provider with nothing useful to do for a
// conversion should return an error, not omit the method.
type Provider interface {
	LoadGraph(ctx context.Context, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error)
	AddVerticesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error)
	AddEdgesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error)
	ToArrowFragment(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error)
	ToDynamicFragment(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error)
}
