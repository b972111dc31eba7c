//go:build experimental

package object

import (
	"context"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
)

// ExperimentalEnabled reports whether this build includes the columnar
// conversion operations. Fixed at build time.
const ExperimentalEnabled = true

// ToArrowFragment converts a dynamic-property fragment into a columnar one
// committed under dstGraphName.
func (g *GraphUtils) ToArrowFragment(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	return g.toArrow(ctx, client, group, src, dstGraphName)
}

// ToDynamicFragment converts a columnar fragment back into the mutable
// dynamic representation under dstGraphName.
func (g *GraphUtils) ToDynamicFragment(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	return g.toDynamic(ctx, group, src, dstGraphName)
}
