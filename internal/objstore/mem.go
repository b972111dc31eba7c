package objstore

import (
	"context"
	"sync"

	"github.com/vk/fragmesh/internal/fmerr"
)

func init() {
	RegisterScheme("mem", func(string) (Client, error) {
		return NewMemClient(), nil
	})
}

// MemClient is the in-memory store used by tests and single-process runs.
// It honors the Client contract, including Persist bookkeeping, so provider
// commit behavior stays observable.
type MemClient struct {
	mu      sync.RWMutex
	nextID  ObjectID
	objects map[ObjectID]*Object
	names   map[string]ObjectID
	closed  bool
}

// NewMemClient returns an empty in-memory store client.
func NewMemClient() *MemClient {
	return &MemClient{
		nextID:  1,
		objects: make(map[ObjectID]*Object),
		names:   make(map[string]ObjectID),
	}
}

var errClientClosed = fmerr.New(fmerr.KindStorage, "store client is closed")

// CreateObject implements Client.
func (c *MemClient) CreateObject(_ context.Context, meta map[string]string, payload []byte) (ObjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return NilObject, errClientClosed
	}
	id := c.nextID
	c.nextID++

	copiedMeta := make(map[string]string, len(meta))
	for k, v := range meta {
		copiedMeta[k] = v
	}
	copiedPayload := make([]byte, len(payload))
	copy(copiedPayload, payload)

	c.objects[id] = &Object{ID: id, Meta: copiedMeta, Payload: copiedPayload}
	return id, nil
}

// GetObject implements Client. The returned object is a copy; mutating it
// does not change the stored artifact.
func (c *MemClient) GetObject(_ context.Context, id ObjectID) (*Object, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errClientClosed
	}
	obj, ok := c.objects[id]
	if !ok {
		return nil, fmerr.Newf(fmerr.KindNotFound, "object %s does not exist", id)
	}
	meta := make(map[string]string, len(obj.Meta))
	for k, v := range obj.Meta {
		meta[k] = v
	}
	payload := make([]byte, len(obj.Payload))
	copy(payload, obj.Payload)
	return &Object{ID: obj.ID, Meta: meta, Payload: payload, Persisted: obj.Persisted}, nil
}

// Persist implements Client.
func (c *MemClient) Persist(_ context.Context, id ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	obj, ok := c.objects[id]
	if !ok {
		return fmerr.Newf(fmerr.KindNotFound, "object %s does not exist", id)
	}
	obj.Persisted = true
	return nil
}

// Delete implements Client.
func (c *MemClient) Delete(_ context.Context, id ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	if _, ok := c.objects[id]; !ok {
		return fmerr.Newf(fmerr.KindNotFound, "object %s does not exist", id)
	}
	delete(c.objects, id)
	return nil
}

// PutName implements Client.
func (c *MemClient) PutName(_ context.Context, name string, id ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	if _, ok := c.objects[id]; !ok {
		return fmerr.Newf(fmerr.KindNotFound, "object %s does not exist", id)
	}
	c.names[name] = id
	return nil
}

// GetName implements Client.
func (c *MemClient) GetName(_ context.Context, name string) (ObjectID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return NilObject, errClientClosed
	}
	id, ok := c.names[name]
	if !ok {
		return NilObject, fmerr.Newf(fmerr.KindNotFound, "name %q is not bound", name)
	}
	return id, nil
}

// ListNames implements Client.
func (c *MemClient) ListNames(_ context.Context, prefix string) (map[string]ObjectID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errClientClosed
	}
	out := make(map[string]ObjectID)
	for name, id := range c.names {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out[name] = id
		}
	}
	return out, nil
}

// DropName implements Client.
func (c *MemClient) DropName(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	if _, ok := c.names[name]; !ok {
		return fmerr.Newf(fmerr.KindNotFound, "name %q is not bound", name)
	}
	delete(c.names, name)
	return nil
}

// Close implements Client. Further calls fail with a storage error.
func (c *MemClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
