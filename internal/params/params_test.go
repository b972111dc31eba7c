package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fragmesh/internal/fmerr"
)

func TestTypedGetters(t *testing.T) {
	p := New(map[string]cty.Value{
		"vfile":    cty.StringVal("vertices.txt"),
		"directed": cty.BoolVal(true),
		"chunk":    cty.NumberIntVal(4096),
		"ratio":    cty.NumberFloatVal(0.5),
	})

	vfile, err := p.String("vfile")
	require.NoError(t, err)
	assert.Equal(t, "vertices.txt", vfile)

	directed, err := p.Bool("directed")
	require.NoError(t, err)
	assert.True(t, directed)

	chunk, err := p.Int64("chunk")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), chunk)

	ratio, err := p.Float64("ratio")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ratio, 1e-9)
}

func TestMissingKey(t *testing.T) {
	p := New(nil)
	_, err := p.String("efile")
	require.Error(t, err)
	assert.Equal(t, fmerr.KindInvalidArgument, fmerr.KindOf(err))
	assert.Contains(t, err.Error(), `"efile"`)
}

func TestConversionFailure(t *testing.T) {
	p := New(map[string]cty.Value{"directed": cty.StringVal("not-a-bool")})
	_, err := p.Bool("directed")
	require.Error(t, err)
	assert.Equal(t, fmerr.KindInvalidArgument, fmerr.KindOf(err))
}

func TestNumberToStringConversion(t *testing.T) {
	// cty converts numbers to strings, which matches how plan authors pass
	// numeric-looking identifiers.
	p := New(map[string]cty.Value{"label": cty.NumberIntVal(7)})
	s, err := p.String("label")
	require.NoError(t, err)
	assert.Equal(t, "7", s)
}

func TestDefaults(t *testing.T) {
	p := New(map[string]cty.Value{"vfile": cty.StringVal("v.txt")})
	assert.Equal(t, "v.txt", p.StringOr("vfile", "fallback"))
	assert.Equal(t, "fallback", p.StringOr("efile", "fallback"))
	assert.Equal(t, int64(8), p.Int64Or("chunk", 8))
	assert.True(t, p.BoolOr("directed", true))
}

func TestImmutability(t *testing.T) {
	src := map[string]cty.Value{"k": cty.StringVal("v")}
	p := New(src)
	src["k"] = cty.StringVal("mutated")
	src["extra"] = cty.StringVal("x")

	got, err := p.String("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.False(t, p.Has("extra"))
}

func TestFromNative(t *testing.T) {
	p, err := FromNative(map[string]any{
		"efile":    "edges.txt",
		"directed": false,
		"chunk":    1024,
	})
	require.NoError(t, err)

	efile, err := p.String("efile")
	require.NoError(t, err)
	assert.Equal(t, "edges.txt", efile)
	assert.Equal(t, int64(1024), p.Int64Or("chunk", 0))
}

func TestFromNativeRejectsUnsupported(t *testing.T) {
	_, err := FromNative(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Equal(t, fmerr.KindInvalidArgument, fmerr.KindOf(err))
}

func TestFromObject(t *testing.T) {
	obj := cty.ObjectVal(map[string]cty.Value{
		"vfile": cty.StringVal("v.txt"),
		"chunk": cty.NumberIntVal(2),
	})
	p, err := FromObject(obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk", "vfile"}, p.Keys())

	_, err = FromObject(cty.StringVal("nope"))
	require.Error(t, err)
	assert.Equal(t, fmerr.KindInvalidArgument, fmerr.KindOf(err))

	empty, err := FromObject(cty.NullVal(cty.EmptyObject))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}
