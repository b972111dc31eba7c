package property

import (
	"github.com/vk/fragmesh/internal/extension"
)

// Name is the registry name this extension registers under.
const Name = "property"

// Module implements the extension.Module interface for this package.
type Module struct{}

// Register registers the provider with the engine.
func (m *Module) Register(r *extension.Registry) {
	r.RegisterProvider(Name, Provider{})
}
