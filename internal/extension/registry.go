package extension

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/fragmesh/internal/fmerr"
)

// Module is the interface built-in extensions implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps extension names to their providers for a single application
// instance. Built-ins register at construction; shared modules loaded from
// disk are added with RegisterProvider after OpenSharedModule resolves them.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry and lets each module register itself.
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterProvider registers a provider under a name. Registering the same
// name twice is a programming error and panics.
func (r *Registry) RegisterProvider(name string, p Provider) {
	if _, exists := r.providers[name]; exists {
		panic(fmt.Sprintf("extension provider with name '%s' already registered", name))
	}
	slog.Debug("Registering extension provider.", "name", name)
	r.providers[name] = p
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmerr.Newf(fmerr.KindExtensionLoad, "no extension registered with name %q", name)
	}
	return p, nil
}

// Names returns all registered extension names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves the named provider into a bound handle with all five entry
// points validated. This is the fail-fast step: a provider missing any entry
// point is rejected here, before any graph operation runs.
func (r *Registry) Open(name string) (*Handle, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	h, err := NewHandle(name, p)
	if err != nil {
		return nil, err
	}
	slog.Debug("Opened extension.", "name", name)
	return h, nil
}
