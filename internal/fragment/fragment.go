// Package fragment defines the handle type every graph mutation and
// conversion operation yields: a wrapper around one committed partition of a
// distributed graph.
package fragment

import (
	"fmt"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/objstore"
)

// Kind discriminates the two fragment representations the engine handles.
type Kind string

const (
	// KindDynamic is the mutable, row-oriented representation.
	KindDynamic Kind = "dynamic"

	// KindArrow is the immutable columnar representation.
	KindArrow Kind = "arrow"
)

// Wrapper is a handle to one fragment of a distributed graph. A Wrapper only
// ever describes a committed fragment: New refuses to build one without a
// store object behind it, so a half-initialized handle cannot reach callers.
type Wrapper struct {
	name      string
	id        objstore.ObjectID
	kind      Kind
	directed  bool
	vertexNum int64
	edgeNum   int64
}

// New builds the wrapper for a committed fragment.
func New(name string, id objstore.ObjectID, kind Kind, directed bool, vertexNum, edgeNum int64) (*Wrapper, error) {
	if name == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "fragment name must not be empty")
	}
	if id == objstore.NilObject {
		return nil, fmerr.Newf(fmerr.KindInvalidArgument, "fragment %q has no committed object behind it", name)
	}
	if kind != KindDynamic && kind != KindArrow {
		return nil, fmerr.Newf(fmerr.KindInvalidArgument, "fragment %q has unknown kind %q", name, kind)
	}
	if vertexNum < 0 || edgeNum < 0 {
		return nil, fmerr.Newf(fmerr.KindInvalidArgument, "fragment %q has negative counts (%d vertices, %d edges)", name, vertexNum, edgeNum)
	}
	return &Wrapper{
		name:      name,
		id:        id,
		kind:      kind,
		directed:  directed,
		vertexNum: vertexNum,
		edgeNum:   edgeNum,
	}, nil
}

// Name returns the graph name this wrapper is installed under.
func (w *Wrapper) Name() string { return w.name }

// ObjectID returns the committed store object backing the fragment.
func (w *Wrapper) ObjectID() objstore.ObjectID { return w.id }

// Kind reports the fragment's representation.
func (w *Wrapper) Kind() Kind { return w.kind }

// Directed reports whether the fragment holds a directed graph.
func (w *Wrapper) Directed() bool { return w.directed }

// VertexNum returns the number of vertices held by this fragment.
func (w *Wrapper) VertexNum() int64 { return w.vertexNum }

// EdgeNum returns the number of edges held by this fragment.
func (w *Wrapper) EdgeNum() int64 { return w.edgeNum }

// String renders the wrapper for logs.
func (w *Wrapper) String() string {
	return fmt.Sprintf("%s(%s %s, %d vertices, %d edges)", w.name, w.kind, w.id, w.vertexNum, w.edgeNum)
}
