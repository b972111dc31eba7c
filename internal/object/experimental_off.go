//go:build !experimental

package object

import (
	"context"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
)

// ExperimentalEnabled reports whether this build includes the columnar
// conversion operations. Fixed at build time.
const ExperimentalEnabled = false

// errConversionDisabled is independent of the call's inputs: the disabled
// state is terminal, so retrying with different arguments can never help.
func errConversionDisabled() error {
	return fmerr.New(fmerr.KindUnsupportedOperation, "fragment conversion is unavailable: built without the experimental feature")
}

// ToArrowFragment always fails in this build; conversions require the
// experimental build tag.
func (g *GraphUtils) ToArrowFragment(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	return nil, errConversionDisabled()
}

// ToDynamicFragment always fails in this build; conversions require the
// experimental build tag.
func (g *GraphUtils) ToDynamicFragment(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	return nil, errConversionDisabled()
}
