package object

import (
	"sort"
	"sync"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
)

// Manager is the per-process registry of live engine objects. Installing
// under an id that is already taken is rejected rather than overwritten, so
// two pipeline steps cannot silently shadow each other's results.
type Manager struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{objects: make(map[string]Object)}
}

// Put installs an object under its own id.
func (m *Manager) Put(obj Object) error {
	if obj == nil {
		return fmerr.New(fmerr.KindInvalidArgument, "cannot install a nil object")
	}
	id := obj.ID()
	if id == "" {
		return fmerr.New(fmerr.KindInvalidArgument, "cannot install an object with an empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[id]; exists {
		return fmerr.Newf(fmerr.KindInvalidOperation, "object %q already installed", id)
	}
	m.objects[id] = obj
	return nil
}

// Get returns the object installed under id.
func (m *Manager) Get(id string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, fmerr.Newf(fmerr.KindNotFound, "no object installed with id %q", id)
	}
	return obj, nil
}

// Has reports whether an object is installed under id.
func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok
}

// Delete removes the object installed under id, if any.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, id)
}

// IDs returns the ids of all installed objects, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of installed objects.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// fragmentObject adapts a fragment wrapper into a managed object. Wrappers
// are installed under their graph name.
type fragmentObject struct {
	w *fragment.Wrapper
}

func (f fragmentObject) ID() string { return f.w.Name() }

func (f fragmentObject) Kind() Kind { return KindFragment }

// PutFragment installs a fragment wrapper under its graph name.
func (m *Manager) PutFragment(w *fragment.Wrapper) error {
	if w == nil {
		return fmerr.New(fmerr.KindInvalidArgument, "cannot install a nil fragment")
	}
	return m.Put(fragmentObject{w: w})
}

// GetFragment returns the fragment wrapper installed under id. An installed
// object of a different kind is an invalid-operation error, not not-found.
func (m *Manager) GetFragment(id string) (*fragment.Wrapper, error) {
	obj, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	fo, ok := obj.(fragmentObject)
	if !ok {
		return nil, fmerr.Newf(fmerr.KindInvalidOperation, "object %q is a %s, not a fragment", id, obj.Kind())
	}
	return fo.w, nil
}

// GetGraphUtils returns the invoker installed under id.
func (m *Manager) GetGraphUtils(id string) (*GraphUtils, error) {
	obj, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	g, ok := obj.(*GraphUtils)
	if !ok {
		return nil, fmerr.Newf(fmerr.KindInvalidOperation, "object %q is a %s, not a graph utils invoker", id, obj.Kind())
	}
	return g, nil
}
