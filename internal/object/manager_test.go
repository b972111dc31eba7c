package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/testutil"
)

func testWrapper(t *testing.T, name string) *fragment.Wrapper {
	t.Helper()
	w, err := fragment.New(name, objstore.ObjectID(42), fragment.KindDynamic, false, 10, 20)
	require.NoError(t, err)
	return w
}

func TestManagerPutGet(t *testing.T) {
	t.Run("fragment round trip", func(t *testing.T) {
		m := NewManager()
		w := testWrapper(t, "g0")
		require.NoError(t, m.PutFragment(w))

		got, err := m.GetFragment("g0")
		require.NoError(t, err)
		assert.Same(t, w, got)
		assert.True(t, m.Has("g0"))
		assert.Equal(t, 1, m.Len())
	})

	t.Run("invoker round trip", func(t *testing.T) {
		m := NewManager()
		g, err := NewGraphUtils("utils", testutil.NewFakeProvider())
		require.NoError(t, err)
		require.NoError(t, m.Put(g))

		got, err := m.GetGraphUtils("utils")
		require.NoError(t, err)
		assert.Same(t, g, got)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		m := NewManager()
		require.NoError(t, m.PutFragment(testWrapper(t, "g0")))

		err := m.PutFragment(testWrapper(t, "g0"))
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindInvalidOperation))
	})

	t.Run("nil and empty ids are rejected", func(t *testing.T) {
		m := NewManager()
		assert.True(t, fmerr.IsKind(m.Put(nil), fmerr.KindInvalidArgument))
		assert.True(t, fmerr.IsKind(m.PutFragment(nil), fmerr.KindInvalidArgument))
	})

	t.Run("missing id reports not found", func(t *testing.T) {
		m := NewManager()
		_, err := m.Get("ghost")
		assert.True(t, fmerr.IsKind(err, fmerr.KindNotFound))
		_, err = m.GetFragment("ghost")
		assert.True(t, fmerr.IsKind(err, fmerr.KindNotFound))
	})
}

func TestManagerTypedGetters(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.PutFragment(testWrapper(t, "g0")))
	g, err := NewGraphUtils("utils", testutil.NewFakeProvider())
	require.NoError(t, err)
	require.NoError(t, m.Put(g))

	t.Run("fragment getter rejects an invoker", func(t *testing.T) {
		_, err := m.GetFragment("utils")
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindInvalidOperation))
		assert.ErrorContains(t, err, "not a fragment")
	})

	t.Run("invoker getter rejects a fragment", func(t *testing.T) {
		_, err := m.GetGraphUtils("g0")
		require.Error(t, err)
		assert.True(t, fmerr.IsKind(err, fmerr.KindInvalidOperation))
		assert.ErrorContains(t, err, "not a graph utils invoker")
	})
}

func TestManagerDeleteAndIDs(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.PutFragment(testWrapper(t, "zeta")))
	require.NoError(t, m.PutFragment(testWrapper(t, "alpha")))

	assert.Equal(t, []string{"alpha", "zeta"}, m.IDs())

	m.Delete("zeta")
	assert.False(t, m.Has("zeta"))
	assert.Equal(t, []string{"alpha"}, m.IDs())

	m.Delete("zeta") // deleting twice is harmless
	assert.Equal(t, 1, m.Len())
}
