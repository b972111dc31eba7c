package integration_tests

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fragmesh/extensions/property"
	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/extension"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/object"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
	"github.com/vk/fragmesh/internal/testutil"
)

// newPropertyInvoker binds the built-in property extension the way the
// worker app does: registry lookup, then handle into an invoker.
func newPropertyInvoker(t *testing.T, id string) *object.GraphUtils {
	t.Helper()
	reg := extension.NewRegistry(&property.Module{})
	handle, err := reg.Open("property")
	require.NoError(t, err)
	utils, err := object.NewGraphUtils(id, handle)
	require.NoError(t, err)
	return utils
}

func fileParams(t *testing.T, kv map[string]any) params.Params {
	t.Helper()
	p, err := params.FromNative(kv)
	require.NoError(t, err)
	return p
}

// Test for: a mutation chain grows fragments without touching their sources.
func TestInvokerLifecycle_MutationChain_PreservesOriginal(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	dir := t.TempDir()
	baseV := testutil.WriteFile(t, dir, "base.v", "v1\nv2\nv3\n")
	moreV := testutil.WriteFile(t, dir, "more.v", "v4\nv5\n")
	edges := testutil.WriteFile(t, dir, "roads.e", "v1 v2\nv2 v3\n")

	group, err := comm.NewSpec(0, 1)
	require.NoError(t, err)
	client := objstore.NewMemClient()
	t.Cleanup(func() { client.Close() })
	utils := newPropertyInvoker(t, "gu_lifecycle")

	// --- Act ---
	base, err := utils.LoadGraph(ctx, group, client, "cities", fileParams(t, map[string]any{"vfile": baseV}))
	require.NoError(t, err)

	baseSnapshot, err := client.GetObject(ctx, base.ObjectID())
	require.NoError(t, err)

	grown, err := utils.AddVerticesToGraph(ctx, base.ObjectID(), group, client, "cities_v2", fileParams(t, map[string]any{"vfile": moreV}))
	require.NoError(t, err)

	connected, err := utils.AddEdgesToGraph(ctx, grown.ObjectID(), group, client, "cities_v3", fileParams(t, map[string]any{"efile": edges}))
	require.NoError(t, err)

	// --- Assert ---
	assert.EqualValues(t, 3, base.VertexNum())
	assert.EqualValues(t, 5, grown.VertexNum())
	assert.EqualValues(t, 5, connected.VertexNum())
	assert.EqualValues(t, 2, connected.EdgeNum())
	assert.Equal(t, fragment.KindDynamic, connected.Kind())

	// Every step committed a distinct object and left its source untouched.
	assert.NotEqual(t, base.ObjectID(), grown.ObjectID())
	assert.NotEqual(t, grown.ObjectID(), connected.ObjectID())

	after, err := client.GetObject(ctx, base.ObjectID())
	require.NoError(t, err)
	assert.Equal(t, baseSnapshot.Payload, after.Payload, "the source fragment's artifact must not change")

	// Committed fragments are persisted and named per rank.
	finalObj, err := client.GetObject(ctx, connected.ObjectID())
	require.NoError(t, err)
	assert.True(t, finalObj.Persisted)

	named, err := client.GetName(ctx, property.FragmentName("cities", group.WorkerID()))
	require.NoError(t, err)
	assert.Equal(t, base.ObjectID(), named)
}

// Test for: two invokers bound to two groups never interfere.
func TestInvokerLifecycle_TwoGroups_DoNotInterfere(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	dir := t.TempDir()
	vfileA := testutil.WriteFile(t, dir, "a.v", "a1\na2\n")
	vfileB := testutil.WriteFile(t, dir, "b.v", "b1\nb2\nb3\n")

	type side struct {
		name    string
		params  params.Params
		client  *objstore.MemClient
		manager *object.Manager
		utils   *object.GraphUtils
		got     *fragment.Wrapper
		err     error
	}
	sides := []*side{
		{name: "left", params: fileParams(t, map[string]any{"vfile": vfileA}), client: objstore.NewMemClient(), manager: object.NewManager()},
		{name: "right", params: fileParams(t, map[string]any{"vfile": vfileB}), client: objstore.NewMemClient(), manager: object.NewManager()},
	}
	for _, s := range sides {
		s.utils = newPropertyInvoker(t, "gu_"+s.name)
		t.Cleanup(func() { s.client.Close() })
	}
	group, err := comm.NewSpec(0, 1)
	require.NoError(t, err)

	// --- Act ---
	var wg sync.WaitGroup
	for _, s := range sides {
		wg.Add(1)
		go func(s *side) {
			defer wg.Done()
			s.got, s.err = s.utils.LoadGraph(ctx, group, s.client, s.name, s.params)
			if s.err == nil {
				s.err = s.manager.PutFragment(s.got)
			}
		}(s)
	}
	wg.Wait()

	// --- Assert ---
	for _, s := range sides {
		require.NoError(t, s.err, "side %s", s.name)
		installed, err := s.manager.GetFragment(s.name)
		require.NoError(t, err)
		assert.Equal(t, s.got.ObjectID(), installed.ObjectID())
	}
	assert.EqualValues(t, 2, sides[0].got.VertexNum())
	assert.EqualValues(t, 3, sides[1].got.VertexNum())

	// Each store only ever saw its own group's fragments.
	leftNames, err := sides[0].client.ListNames(ctx, "")
	require.NoError(t, err)
	assert.Len(t, leftNames, 1)
	assert.Contains(t, leftNames, property.FragmentName("left", 0))

	rightNames, err := sides[1].client.ListNames(ctx, "")
	require.NoError(t, err)
	assert.Len(t, rightNames, 1)
	assert.Contains(t, rightNames, property.FragmentName("right", 0))

	// The managers are as isolated as the stores.
	_, err = sides[0].manager.GetFragment("right")
	assert.Equal(t, fmerr.KindNotFound, fmerr.KindOf(err))
}

// Test for: binding a shared module that does not exist fails fast.
func TestInvokerLifecycle_MissingSharedModule_FailsFast(t *testing.T) {
	_, err := object.OpenGraphUtils("gu_missing", "/does/not/exist.so")
	require.Error(t, err)
	assert.Equal(t, fmerr.KindExtensionLoad, fmerr.KindOf(err))
}
