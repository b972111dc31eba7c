package testutil

import (
	"context"
	"sync"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/extension"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
)

// FakeProvider implements extension.Provider for tests. Every entry point
// has a default that fabricates a valid wrapper without touching a store;
// tests override individual entry points through the Fn fields and inspect
// per-entry-point call counts afterwards.
type FakeProvider struct {
	LoadGraphFn   extension.LoadGraphFunc
	AddVerticesFn extension.AddVerticesFunc
	AddEdgesFn    extension.AddEdgesFunc
	ToArrowFn     extension.ToArrowFunc
	ToDynamicFn   extension.ToDynamicFunc

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeProvider returns a provider whose five entry points all succeed.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{calls: make(map[string]int)}
}

// Calls reports how many times the named entry point was invoked.
func (f *FakeProvider) Calls(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

func (f *FakeProvider) record(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
}

func fabricate(name string, kind fragment.Kind) (*fragment.Wrapper, error) {
	return fragment.New(name, objstore.RandomObjectID(), kind, true, 0, 0)
}

// LoadGraph implements extension.Provider.
func (f *FakeProvider) LoadGraph(ctx context.Context, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	f.record(extension.SymbolLoadGraph)
	if f.LoadGraphFn != nil {
		return f.LoadGraphFn(ctx, group, client, graphName, p)
	}
	return fabricate(graphName, fragment.KindDynamic)
}

// AddVerticesToGraph implements extension.Provider.
func (f *FakeProvider) AddVerticesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	f.record(extension.SymbolAddVerticesToGraph)
	if f.AddVerticesFn != nil {
		return f.AddVerticesFn(ctx, src, group, client, graphName, p)
	}
	return fabricate(graphName, fragment.KindDynamic)
}

// AddEdgesToGraph implements extension.Provider.
func (f *FakeProvider) AddEdgesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	f.record(extension.SymbolAddEdgesToGraph)
	if f.AddEdgesFn != nil {
		return f.AddEdgesFn(ctx, src, group, client, graphName, p)
	}
	return fabricate(graphName, fragment.KindDynamic)
}

// ToArrowFragment implements extension.Provider.
func (f *FakeProvider) ToArrowFragment(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	f.record(extension.SymbolToArrowFragment)
	if f.ToArrowFn != nil {
		return f.ToArrowFn(ctx, client, group, src, dstGraphName)
	}
	return fabricate(dstGraphName, fragment.KindArrow)
}

// ToDynamicFragment implements extension.Provider.
func (f *FakeProvider) ToDynamicFragment(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	f.record(extension.SymbolToDynamicFragment)
	if f.ToDynamicFn != nil {
		return f.ToDynamicFn(ctx, group, src, dstGraphName)
	}
	return fabricate(dstGraphName, fragment.KindDynamic)
}

// FakeModule registers a FakeProvider under Name, standing in for a real
// built-in extension in app-level tests. A nil Provider is populated on
// Register so tests can inspect calls afterwards.
type FakeModule struct {
	Name     string
	Provider *FakeProvider
}

// Register implements extension.Module.
func (m *FakeModule) Register(r *extension.Registry) {
	if m.Provider == nil {
		m.Provider = NewFakeProvider()
	}
	r.RegisterProvider(m.Name, m.Provider)
}
