// Package object holds the per-process engine objects: the graph mutation
// invoker (GraphUtils) and the manager that installs invokers and produced
// fragment wrappers under stable ids so later pipeline steps and sessions
// can retrieve them.
package object

// Kind discriminates the object types the manager can hold.
type Kind string

const (
	// KindGraphUtils marks a graph mutation invoker.
	KindGraphUtils Kind = "graph_utils"

	// KindFragment marks an installed fragment wrapper.
	KindFragment Kind = "fragment"
)

// Object is anything the manager can install.
type Object interface {
	ID() string
	Kind() Kind
}
