package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
)

// stubProvider satisfies Provider with canned results and per-entry-point
// call counts.
type stubProvider struct {
	wrap  *fragment.Wrapper
	calls map[string]int
}

func newStubProvider(t *testing.T) *stubProvider {
	t.Helper()
	wrap, err := fragment.New("g", objstore.ObjectID(0xff), fragment.KindDynamic, true, 3, 2)
	require.NoError(t, err)
	return &stubProvider{wrap: wrap, calls: make(map[string]int)}
}

func (s *stubProvider) LoadGraph(ctx context.Context, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	s.calls[SymbolLoadGraph]++
	return s.wrap, nil
}

func (s *stubProvider) AddVerticesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	s.calls[SymbolAddVerticesToGraph]++
	return s.wrap, nil
}

func (s *stubProvider) AddEdgesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	s.calls[SymbolAddEdgesToGraph]++
	return s.wrap, nil
}

func (s *stubProvider) ToArrowFragment(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	s.calls[SymbolToArrowFragment]++
	return s.wrap, nil
}

func (s *stubProvider) ToDynamicFragment(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	s.calls[SymbolToDynamicFragment]++
	return s.wrap, nil
}

// registerStub adapts a provider to the Module interface for NewRegistry.
type registerStub struct {
	name string
	p    Provider
}

func (m registerStub) Register(r *Registry) { r.RegisterProvider(m.name, m.p) }

func TestTableValidate(t *testing.T) {
	t.Run("fully bound table passes", func(t *testing.T) {
		table := tableOf(newStubProvider(t))
		assert.NoError(t, table.Validate())
	})

	t.Run("empty table names every entry point", func(t *testing.T) {
		err := Table{}.Validate()
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindSymbolNotFound))
		for _, sym := range Symbols() {
			assert.ErrorContains(t, err, sym)
		}
	})

	t.Run("partial table names only the missing entry points", func(t *testing.T) {
		table := tableOf(newStubProvider(t))
		table.ToArrowFragment = nil
		table.ToDynamicFragment = nil

		err := table.Validate()
		require.Error(t, err)
		assert.ErrorContains(t, err, SymbolToArrowFragment)
		assert.ErrorContains(t, err, SymbolToDynamicFragment)
		assert.NotContains(t, err.Error(), SymbolLoadGraph)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("modules register during construction", func(t *testing.T) {
		stub := newStubProvider(t)
		r := NewRegistry(registerStub{name: "property", p: stub})

		p, err := r.Lookup("property")
		require.NoError(t, err)
		assert.Same(t, Provider(stub), p)
	})

	t.Run("lookup of an unknown name fails", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Lookup("nope")
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindExtensionLoad))
		assert.ErrorContains(t, err, `"nope"`)
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterProvider("dup", newStubProvider(t))
		assert.PanicsWithValue(t,
			"extension provider with name 'dup' already registered",
			func() { r.RegisterProvider("dup", newStubProvider(t)) })
	})

	t.Run("names are sorted", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterProvider("zeta", newStubProvider(t))
		r.RegisterProvider("alpha", newStubProvider(t))
		r.RegisterProvider("mid", newStubProvider(t))
		assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
	})

	t.Run("open of an unknown name fails", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Open("ghost")
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindExtensionLoad))
	})
}

func TestHandle(t *testing.T) {
	openStub := func(t *testing.T) (*Handle, *stubProvider) {
		t.Helper()
		stub := newStubProvider(t)
		r := NewRegistry()
		r.RegisterProvider("stub", stub)
		h, err := r.Open("stub")
		require.NoError(t, err)
		return h, stub
	}

	t.Run("entry points forward to the provider", func(t *testing.T) {
		h, stub := openStub(t)
		ctx := context.Background()

		got, err := h.LoadGraph(ctx, nil, nil, "g", params.Params{})
		require.NoError(t, err)
		assert.Same(t, stub.wrap, got)

		_, err = h.AddVerticesToGraph(ctx, stub.wrap.ObjectID(), nil, nil, "g", params.Params{})
		require.NoError(t, err)
		_, err = h.AddEdgesToGraph(ctx, stub.wrap.ObjectID(), nil, nil, "g", params.Params{})
		require.NoError(t, err)
		_, err = h.ToArrowFragment(ctx, nil, nil, stub.wrap, "g2")
		require.NoError(t, err)
		_, err = h.ToDynamicFragment(ctx, nil, stub.wrap, "g3")
		require.NoError(t, err)

		for _, sym := range Symbols() {
			assert.Equal(t, 1, stub.calls[sym], "call count for %s", sym)
		}
	})

	t.Run("closed handle rejects every entry point", func(t *testing.T) {
		h, stub := openStub(t)
		require.NoError(t, h.Close())
		assert.True(t, h.Closed())
		ctx := context.Background()

		_, err := h.LoadGraph(ctx, nil, nil, "g", params.Params{})
		assert.True(t, fmerr.IsKind(err, fmerr.KindExtensionLoad))
		assert.ErrorContains(t, err, "is closed")

		_, err = h.AddVerticesToGraph(ctx, stub.wrap.ObjectID(), nil, nil, "g", params.Params{})
		assert.Error(t, err)
		_, err = h.AddEdgesToGraph(ctx, stub.wrap.ObjectID(), nil, nil, "g", params.Params{})
		assert.Error(t, err)
		_, err = h.ToArrowFragment(ctx, nil, nil, stub.wrap, "g2")
		assert.Error(t, err)
		_, err = h.ToDynamicFragment(ctx, nil, stub.wrap, "g3")
		assert.Error(t, err)

		assert.Empty(t, stub.calls, "provider must not be reached after close")
	})

	t.Run("close is idempotent", func(t *testing.T) {
		h, _ := openStub(t)
		assert.NoError(t, h.Close())
		assert.NoError(t, h.Close())
	})

	t.Run("nil provider is rejected", func(t *testing.T) {
		_, err := NewHandle("broken", nil)
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindExtensionLoad))
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := NewHandle("", newStubProvider(t))
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindInvalidArgument))
	})
}
