package extension

import (
	"strings"

	"github.com/vk/fragmesh/internal/fmerr"
)

// Table is the fixed set of resolved entry points for one opened extension.
// It is populated in full at open time; Validate is the single place that
// decides whether a resolution pass bound everything.
type Table struct {
	LoadGraph          LoadGraphFunc
	AddVerticesToGraph AddVerticesFunc
	AddEdgesToGraph    AddEdgesFunc
	ToArrowFragment    ToArrowFunc
	ToDynamicFragment  ToDynamicFunc
}

// Validate fails with a symbol-not-found error naming every unbound entry
// point. A table that fails validation must be discarded whole, never used
// partially.
func (t Table) Validate() error {
	var missing []string
	if t.LoadGraph == nil {
		missing = append(missing, SymbolLoadGraph)
	}
	if t.AddVerticesToGraph == nil {
		missing = append(missing, SymbolAddVerticesToGraph)
	}
	if t.AddEdgesToGraph == nil {
		missing = append(missing, SymbolAddEdgesToGraph)
	}
	if t.ToArrowFragment == nil {
		missing = append(missing, SymbolToArrowFragment)
	}
	if t.ToDynamicFragment == nil {
		missing = append(missing, SymbolToDynamicFragment)
	}
	if len(missing) > 0 {
		return fmerr.Newf(fmerr.KindSymbolNotFound, "entry points not bound: %s", strings.Join(missing, ", "))
	}
	return nil
}

// tableOf captures a provider's method set into a table.
func tableOf(p Provider) Table {
	return Table{
		LoadGraph:          p.LoadGraph,
		AddVerticesToGraph: p.AddVerticesToGraph,
		AddEdgesToGraph:    p.AddEdgesToGraph,
		ToArrowFragment:    p.ToArrowFragment,
		ToDynamicFragment:  p.ToDynamicFragment,
	}
}
