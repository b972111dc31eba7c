// Package objstore defines the engine's boundary to the shared object store.
//
// The store itself is an external collaborator: workers reach it over an IPC
// socket and exchange only ObjectIDs. This package fixes the client surface
// the engine and its extensions program against, and ships one in-memory
// implementation for tests and single-process runs. Real store clients are
// integrations registered by scheme.
package objstore

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/vk/fragmesh/internal/fmerr"
)

// ObjectID names one graph artifact inside the shared store. It is opaque,
// process-wide unique, and immutable once assigned; all group members refer
// to the same logical graph by the same ObjectID.
type ObjectID uint64

// NilObject is the zero ObjectID. No committed artifact ever carries it.
const NilObject ObjectID = 0

// String renders the id in the store's canonical form, e.g. "o000000000000002a".
func (id ObjectID) String() string {
	return fmt.Sprintf("o%016x", uint64(id))
}

// RandomObjectID draws a fresh non-nil identifier. Collisions across 64 bits
// are the store's problem to detect, not ours to prevent.
func RandomObjectID() ObjectID {
	var buf [8]byte
	for {
		if _, err := crand.Read(buf[:]); err != nil {
			panic(fmt.Sprintf("objstore: reading random id: %v", err))
		}
		if id := ObjectID(binary.BigEndian.Uint64(buf[:])); id != NilObject {
			return id
		}
	}
}

// ParseObjectID parses the canonical "o<hex>" form and, for operator
// convenience, bare hex or decimal.
func ParseObjectID(s string) (ObjectID, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "o")
	if raw == "" {
		return NilObject, fmerr.Newf(fmerr.KindInvalidArgument, "empty object id %q", s)
	}
	if v, err := strconv.ParseUint(raw, 16, 64); err == nil {
		return ObjectID(v), nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return NilObject, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("malformed object id %q", s))
	}
	return ObjectID(v), nil
}

// Object is one stored artifact as seen through the client.
type Object struct {
	ID        ObjectID
	Meta      map[string]string
	Payload   []byte
	Persisted bool
}

// Client is the store connection each worker holds. Reads are safe for
// concurrent use within one process; creating objects for the same logical
// graph is single-writer by contract.
type Client interface {
	// CreateObject stores payload and metadata and assigns a fresh ObjectID.
	// The object stays instance-local until Persist.
	CreateObject(ctx context.Context, meta map[string]string, payload []byte) (ObjectID, error)

	// GetObject fetches an object by id.
	GetObject(ctx context.Context, id ObjectID) (*Object, error)

	// Persist makes an object visible to every group member sharing the store.
	Persist(ctx context.Context, id ObjectID) error

	// Delete drops an object.
	Delete(ctx context.Context, id ObjectID) error

	// PutName binds a name to an object id.
	PutName(ctx context.Context, name string, id ObjectID) error

	// GetName resolves a name to an object id.
	GetName(ctx context.Context, name string) (ObjectID, error)

	// ListNames returns all bindings whose name starts with prefix.
	ListNames(ctx context.Context, prefix string) (map[string]ObjectID, error)

	// DropName removes a name binding.
	DropName(ctx context.Context, name string) error

	Close() error
}

// OpenFunc connects a scheme-specific client to the given endpoint.
type OpenFunc func(endpoint string) (Client, error)

var (
	schemeMu sync.RWMutex
	schemes  = map[string]OpenFunc{}
)

// RegisterScheme installs a client constructor for a store scheme. A
// duplicate registration is a programmer error.
func RegisterScheme(scheme string, open OpenFunc) {
	schemeMu.Lock()
	defer schemeMu.Unlock()
	if _, exists := schemes[scheme]; exists {
		panic(fmt.Sprintf("objstore: scheme %q already registered", scheme))
	}
	schemes[scheme] = open
}

// Schemes lists the registered scheme names in sorted order.
func Schemes() []string {
	schemeMu.RLock()
	defer schemeMu.RUnlock()
	out := make([]string, 0, len(schemes))
	for s := range schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open connects to the store named by spec, e.g. "mem://" or
// "ipc:///var/run/store.sock". A bare path is shorthand for the ipc scheme.
func Open(spec string) (Client, error) {
	scheme, endpoint := "ipc", spec
	if i := strings.Index(spec, "://"); i >= 0 {
		scheme, endpoint = spec[:i], spec[i+3:]
	}
	schemeMu.RLock()
	open, ok := schemes[scheme]
	schemeMu.RUnlock()
	if !ok {
		return nil, fmerr.Newf(fmerr.KindStorage, "no store client registered for scheme %q (have %v)", scheme, Schemes())
	}
	client, err := open(endpoint)
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("connecting to %q", spec))
	}
	return client, nil
}
