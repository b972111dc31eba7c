// Package pipeline loads multi-step mutation plans from HCL files and
// executes them against a graph mutation invoker. A plan is a set of op
// blocks linked by their source references into a dependency graph;
// independent chains run concurrently and each chain short-circuits on its
// first failure.
package pipeline

import (
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/params"
)

// OpKind names one invoker operation a plan step can run.
type OpKind string

const (
	OpLoadGraph   OpKind = "load_graph"
	OpAddVertices OpKind = "add_vertices"
	OpAddEdges    OpKind = "add_edges"
	OpToArrow     OpKind = "to_arrow"
	OpToDynamic   OpKind = "to_dynamic"
)

func (k OpKind) valid() bool {
	switch k {
	case OpLoadGraph, OpAddVertices, OpAddEdges, OpToArrow, OpToDynamic:
		return true
	}
	return false
}

// hclPlanFile is the top-level structure of a plan file for decoding.
type hclPlanFile struct {
	Ops []*hclOp `hcl:"op,block"`
}

// hclOp is one raw op block:
//
//	op "<kind>" "<name>" {
//	  source = "<upstream graph name>"
//	  params = { ... }
//	}
type hclOp struct {
	Kind   string    `hcl:"kind,label"`
	Name   string    `hcl:"name,label"`
	Source string    `hcl:"source,optional"`
	Params cty.Value `hcl:"params,optional"`
}

// Op is one validated plan step. Name is the graph name the step's result
// is installed under; Source names the upstream graph for every kind except
// load_graph.
type Op struct {
	Kind   OpKind
	Name   string
	Source string
	Params params.Params
	File   string
}

// GeneratedName returns a fresh graph name for steps that omit one.
func GeneratedName() string {
	return "g_" + uuid.NewString()[:8]
}

// newOp translates a raw block into a validated-shape Op.
func newOp(raw *hclOp, file string) (*Op, error) {
	op := &Op{
		Kind:   OpKind(raw.Kind),
		Name:   raw.Name,
		Source: raw.Source,
		File:   file,
	}
	if op.Name == "" {
		op.Name = GeneratedName()
	}
	if raw.Params != cty.NilVal && !raw.Params.IsNull() {
		p, err := params.FromObject(raw.Params)
		if err != nil {
			return nil, fmerr.Annotatef(err, "op %q in %s", op.Name, file)
		}
		op.Params = p
	}
	return op, nil
}

func (o *Op) validate() error {
	if !o.Kind.valid() {
		return fmerr.Newf(fmerr.KindInvalidArgument, "unknown op kind %q in %s", o.Kind, o.File)
	}
	if o.Kind == OpLoadGraph && o.Source != "" {
		return fmerr.Newf(fmerr.KindInvalidArgument, "op %q: load_graph does not take a source", o.Name)
	}
	if o.Kind != OpLoadGraph && o.Source == "" {
		return fmerr.Newf(fmerr.KindInvalidArgument, "op %q: %s requires a source", o.Name, o.Kind)
	}
	return nil
}
