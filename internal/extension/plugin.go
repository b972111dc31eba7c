package extension

import (
	"context"
	"log/slog"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
)

// symbolSource is the part of *plugin.Plugin the resolver needs. Keeping it
// an interface lets table resolution run against in-memory fakes.
type symbolSource interface {
	Lookup(name string) (plugin.Symbol, error)
}

// OpenSharedModule loads a shared module from disk and binds its five graph
// entry points. The module must export plain functions named LoadGraph,
// AddVerticesToGraph, AddEdgesToGraph, ToArrowFragment and ToDynamicFragment
// with the signatures declared in this package. Every missing or mistyped
// symbol is reported in a single error so the operator sees the full list,
// not just the first failure.
func OpenSharedModule(path string) (*Handle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmerr.Newf(fmerr.KindExtensionLoad, "opening shared module %q: %v", path, err)
	}
	table, err := resolveTable(p)
	if err != nil {
		return nil, fmerr.Annotatef(err, "shared module %q", path)
	}
	h, err := newHandle(filepath.Base(path), table)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded shared extension module.", "path", path, "symbols", Symbols())
	return h, nil
}

// resolveTable looks up and type-asserts all five entry points from src.
func resolveTable(src symbolSource) (Table, error) {
	var (
		t        Table
		problems []string
	)
	missing := func(name string) { problems = append(problems, name+": not exported") }
	mistyped := func(name string) { problems = append(problems, name+": unexpected signature") }

	if sym, err := src.Lookup(SymbolLoadGraph); err != nil {
		missing(SymbolLoadGraph)
	} else if fn, ok := sym.(func(context.Context, *comm.Spec, objstore.Client, string, params.Params) (*fragment.Wrapper, error)); ok {
		t.LoadGraph = fn
	} else {
		mistyped(SymbolLoadGraph)
	}

	if sym, err := src.Lookup(SymbolAddVerticesToGraph); err != nil {
		missing(SymbolAddVerticesToGraph)
	} else if fn, ok := sym.(func(context.Context, objstore.ObjectID, *comm.Spec, objstore.Client, string, params.Params) (*fragment.Wrapper, error)); ok {
		t.AddVerticesToGraph = fn
	} else {
		mistyped(SymbolAddVerticesToGraph)
	}

	if sym, err := src.Lookup(SymbolAddEdgesToGraph); err != nil {
		missing(SymbolAddEdgesToGraph)
	} else if fn, ok := sym.(func(context.Context, objstore.ObjectID, *comm.Spec, objstore.Client, string, params.Params) (*fragment.Wrapper, error)); ok {
		t.AddEdgesToGraph = fn
	} else {
		mistyped(SymbolAddEdgesToGraph)
	}

	if sym, err := src.Lookup(SymbolToArrowFragment); err != nil {
		missing(SymbolToArrowFragment)
	} else if fn, ok := sym.(func(context.Context, objstore.Client, *comm.Spec, *fragment.Wrapper, string) (*fragment.Wrapper, error)); ok {
		t.ToArrowFragment = fn
	} else {
		mistyped(SymbolToArrowFragment)
	}

	if sym, err := src.Lookup(SymbolToDynamicFragment); err != nil {
		missing(SymbolToDynamicFragment)
	} else if fn, ok := sym.(func(context.Context, *comm.Spec, *fragment.Wrapper, string) (*fragment.Wrapper, error)); ok {
		t.ToDynamicFragment = fn
	} else {
		mistyped(SymbolToDynamicFragment)
	}

	if len(problems) > 0 {
		return Table{}, fmerr.Newf(fmerr.KindSymbolNotFound, "resolving entry points: %s", strings.Join(problems, "; "))
	}
	return t, nil
}
