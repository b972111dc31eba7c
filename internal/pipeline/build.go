package pipeline

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
)

type nodeState int32

const (
	statePending nodeState = iota
	stateRunning
	stateDone
	stateFailed
)

// node is one op linked into the plan's dependency graph, plus its
// execution bookkeeping.
type node struct {
	op         *Op
	sourceNode *node
	dependents []*node

	// depCount is an atomic counter of unmet dependencies; a node enters
	// the ready queue when it reaches zero.
	depCount atomic.Int32
	state    atomic.Int32
	err      error
	result   *fragment.Wrapper
	skipOnce sync.Once
}

func (n *node) setState(s nodeState) { n.state.Store(int32(s)) }

func (n *node) is(s nodeState) bool { return n.state.Load() == int32(s) }

// Plan is a validated set of ops linked into a dependency graph. A source
// reference that names another op in the plan becomes an edge; any other
// source is resolved from the object manager when the plan runs.
type Plan struct {
	ops   []*Op
	nodes map[string]*node
}

// NewPlan validates ops and links their dependencies.
func NewPlan(ops []*Op) (*Plan, error) {
	nodes := make(map[string]*node, len(ops))
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return nil, err
		}
		if prev, exists := nodes[op.Name]; exists {
			return nil, fmerr.Newf(fmerr.KindInvalidArgument, "duplicate op name %q (%s and %s)", op.Name, prev.op.File, op.File)
		}
		nodes[op.Name] = &node{op: op}
	}

	for _, n := range nodes {
		if n.op.Source == "" {
			continue
		}
		if n.op.Source == n.op.Name {
			return nil, fmerr.Newf(fmerr.KindInvalidArgument, "op %q cannot use itself as source", n.op.Name)
		}
		if src, ok := nodes[n.op.Source]; ok {
			n.sourceNode = src
			src.dependents = append(src.dependents, n)
			n.depCount.Add(1)
		}
	}

	if err := detectCycles(nodes); err != nil {
		return nil, err
	}
	return &Plan{ops: ops, nodes: nodes}, nil
}

// Len reports the number of ops in the plan.
func (p *Plan) Len() int { return len(p.ops) }

// Ops returns the plan's ops in their load order.
func (p *Plan) Ops() []*Op { return p.ops }

// Names returns the result graph names the plan produces, sorted.
func (p *Plan) Names() []string {
	names := make([]string, 0, len(p.nodes))
	for name := range p.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// detectCycles runs a depth-first search with the classic three node sets:
// permanently visited, on the current recursion stack, and unvisited.
func detectCycles(nodes map[string]*node) error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.op.Name] {
			return nil
		}
		if temporary[n.op.Name] {
			return fmerr.Newf(fmerr.KindInvalidArgument, "plan has a cycle involving op %q", n.op.Name)
		}
		temporary[n.op.Name] = true
		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.op.Name)
		permanent[n.op.Name] = true
		return nil
	}

	for _, n := range nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}
