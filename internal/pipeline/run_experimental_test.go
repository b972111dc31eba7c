//go:build experimental

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fragmesh/internal/extension"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/testutil"
)

func TestRunConversionChain(t *testing.T) {
	provider := testutil.NewFakeProvider()
	runner, manager := newTestRunner(t, provider)

	plan := mustPlan(t, []*Op{
		{Kind: OpLoadGraph, Name: "d1"},
		{Kind: OpToArrow, Name: "a1", Source: "d1"},
		{Kind: OpToDynamic, Name: "d2", Source: "a1"},
	})
	require.NoError(t, runner.Run(context.Background(), plan))

	arrow, err := manager.GetFragment("a1")
	require.NoError(t, err)
	assert.Equal(t, fragment.KindArrow, arrow.Kind())
	dynamic, err := manager.GetFragment("d2")
	require.NoError(t, err)
	assert.Equal(t, fragment.KindDynamic, dynamic.Kind())

	assert.Equal(t, 1, provider.Calls(extension.SymbolToArrowFragment))
	assert.Equal(t, 1, provider.Calls(extension.SymbolToDynamicFragment))
}
