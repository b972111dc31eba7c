package property

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/vk/fragmesh/internal/comm"
	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fragment"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/params"
)

// Provider builds property-graph fragments from line-oriented vertex and
// edge files. Each rank keeps the vertices it owns (by hash) and the edges
// whose source it owns, so a group of workers partitions one input without
// talking to each other. Mutations are copy-on-write: they commit a fresh
// object and never touch the source fragment.
type Provider struct{}

// FragmentName is the store name binding for one rank's fragment of a graph.
func FragmentName(graphName string, rank int) string {
	return "fragment/" + graphName + "/" + strconv.Itoa(rank)
}

// ownerIndex assigns a vertex to a worker slot by hash.
func ownerIndex(vertex string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(vertex))
	return int(h.Sum32() % uint32(workers))
}

func owned(group *comm.Spec, vertex string) bool {
	return ownerIndex(vertex, group.WorkerNum()) == group.WorkerIndex()
}

// LoadGraph builds this rank's partition from the `vfile` parameter
// (required) and the optional `efile`, honoring the `directed` flag
// (default true), and commits it before returning.
func (Provider) LoadGraph(ctx context.Context, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	vfile, err := p.String("vfile")
	if err != nil {
		return nil, err
	}
	vertices, err := readVertexFile(vfile)
	if err != nil {
		return nil, err
	}
	var edges [][2]string
	if p.Has("efile") {
		efile, err := p.String("efile")
		if err != nil {
			return nil, err
		}
		if edges, err = readEdgeFile(efile); err != nil {
			return nil, err
		}
	}

	rec := buildPartition(group, p.BoolOr("directed", true), vertices, edges)
	payload, err := encodeGraph(rec)
	if err != nil {
		return nil, err
	}
	return commitPayload(ctx, client, group, graphName, fragment.KindDynamic, rec.Directed, payload, len(rec.Vertices), len(rec.Edges))
}

// AddVerticesToGraph commits a new fragment holding the source fragment's
// content plus the owned vertices named by `vfile`.
func (Provider) AddVerticesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	vfile, err := p.String("vfile")
	if err != nil {
		return nil, err
	}
	added, err := readVertexFile(vfile)
	if err != nil {
		return nil, err
	}
	rec, err := fetchGraph(ctx, client, src)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rec.Vertices))
	for _, v := range rec.Vertices {
		seen[v] = true
	}
	for _, v := range added {
		if owned(group, v) && !seen[v] {
			seen[v] = true
			rec.Vertices = append(rec.Vertices, v)
		}
	}

	payload, err := encodeGraph(rec)
	if err != nil {
		return nil, err
	}
	return commitPayload(ctx, client, group, graphName, fragment.KindDynamic, rec.Directed, payload, len(rec.Vertices), len(rec.Edges))
}

// AddEdgesToGraph commits a new fragment holding the source fragment's
// content plus the edges named by `efile` whose source this rank owns.
// Endpoints not yet present join the vertex set, matching the additive
// semantics of the dynamic representation.
func (Provider) AddEdgesToGraph(ctx context.Context, src objstore.ObjectID, group *comm.Spec, client objstore.Client, graphName string, p params.Params) (*fragment.Wrapper, error) {
	efile, err := p.String("efile")
	if err != nil {
		return nil, err
	}
	added, err := readEdgeFile(efile)
	if err != nil {
		return nil, err
	}
	rec, err := fetchGraph(ctx, client, src)
	if err != nil {
		return nil, err
	}

	seenVertex := make(map[string]bool, len(rec.Vertices))
	for _, v := range rec.Vertices {
		seenVertex[v] = true
	}
	seenEdge := make(map[[2]string]bool, len(rec.Edges))
	for _, e := range rec.Edges {
		seenEdge[e] = true
	}
	addVertex := func(v string) {
		if owned(group, v) && !seenVertex[v] {
			seenVertex[v] = true
			rec.Vertices = append(rec.Vertices, v)
		}
	}
	for _, e := range added {
		if !owned(group, e[0]) || seenEdge[e] {
			continue
		}
		seenEdge[e] = true
		rec.Edges = append(rec.Edges, e)
		addVertex(e[0])
		addVertex(e[1])
	}

	payload, err := encodeGraph(rec)
	if err != nil {
		return nil, err
	}
	return commitPayload(ctx, client, group, graphName, fragment.KindDynamic, rec.Directed, payload, len(rec.Vertices), len(rec.Edges))
}

// ToArrowFragment reads the dynamic source and commits its columnar
// rendering under dstGraphName.
func (Provider) ToArrowFragment(ctx context.Context, client objstore.Client, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	if src.Kind() != fragment.KindDynamic {
		return nil, fmerr.Newf(fmerr.KindInvalidOperation, "fragment %q is already columnar", src.Name())
	}
	rec, err := fetchGraph(ctx, client, src.ObjectID())
	if err != nil {
		return nil, err
	}

	arrow := arrowRecord{Directed: rec.Directed, Vertices: rec.Vertices}
	for _, e := range rec.Edges {
		arrow.EdgeSrc = append(arrow.EdgeSrc, e[0])
		arrow.EdgeDst = append(arrow.EdgeDst, e[1])
	}
	payload, err := encodeArrow(arrow)
	if err != nil {
		return nil, err
	}
	return commitPayload(ctx, client, group, dstGraphName, fragment.KindArrow, arrow.Directed, payload, len(arrow.Vertices), len(arrow.EdgeSrc))
}

// ToDynamicFragment re-wraps the source's committed object as a dynamic
// view. The operation receives no store client, so it cannot commit a new
// object; both wrappers share one artifact, and a later mutation of the
// view reads through the columnar payload and commits fresh.
func (Provider) ToDynamicFragment(ctx context.Context, group *comm.Spec, src *fragment.Wrapper, dstGraphName string) (*fragment.Wrapper, error) {
	if src.Kind() != fragment.KindArrow {
		return nil, fmerr.Newf(fmerr.KindInvalidOperation, "fragment %q is already dynamic", src.Name())
	}
	ctxlog.FromContext(ctx).Debug("Re-wrapping columnar fragment as dynamic view.", "source", src.ObjectID(), "graph", dstGraphName, "rank", group.WorkerID())
	return fragment.New(dstGraphName, src.ObjectID(), fragment.KindDynamic, src.Directed(), src.VertexNum(), src.EdgeNum())
}

// buildPartition keeps the vertices this rank owns and the edges whose
// source this rank owns.
func buildPartition(group *comm.Spec, directed bool, vertices []string, edges [][2]string) graphRecord {
	rec := graphRecord{Directed: directed}
	seen := make(map[string]bool)
	addVertex := func(v string) {
		if owned(group, v) && !seen[v] {
			seen[v] = true
			rec.Vertices = append(rec.Vertices, v)
		}
	}
	for _, v := range vertices {
		addVertex(v)
	}
	seenEdge := make(map[[2]string]bool)
	for _, e := range edges {
		if !owned(group, e[0]) || seenEdge[e] {
			continue
		}
		seenEdge[e] = true
		rec.Edges = append(rec.Edges, e)
		addVertex(e[0])
		addVertex(e[1])
	}
	return rec
}

// fetchGraph loads a committed fragment payload in row form, reading
// through the columnar encoding when the artifact is an arrow fragment.
func fetchGraph(ctx context.Context, client objstore.Client, src objstore.ObjectID) (graphRecord, error) {
	obj, err := client.GetObject(ctx, src)
	if err != nil {
		return graphRecord{}, fmerr.Annotatef(err, "fetching source fragment %s", src)
	}
	if obj.Meta["kind"] == string(fragment.KindArrow) {
		arrow, err := decodeArrow(obj.Payload)
		if err != nil {
			return graphRecord{}, err
		}
		return arrow.rows(), nil
	}
	return decodeGraph(obj.Payload)
}

// commitPayload creates, persists, and names the store object for one
// fragment, then wraps it. The name binding lets other processes of the
// group find this rank's fragment by graph name alone.
func commitPayload(ctx context.Context, client objstore.Client, group *comm.Spec, graphName string, kind fragment.Kind, directed bool, payload []byte, vertices, edges int) (*fragment.Wrapper, error) {
	meta := map[string]string{
		"kind":  string(kind),
		"graph": graphName,
		"rank":  strconv.Itoa(group.WorkerID()),
	}
	id, err := client.CreateObject(ctx, meta, payload)
	if err != nil {
		return nil, fmerr.Annotatef(err, "committing fragment for graph %q", graphName)
	}
	if err := client.Persist(ctx, id); err != nil {
		return nil, fmerr.Annotatef(err, "persisting fragment %s for graph %q", id, graphName)
	}
	if err := client.PutName(ctx, FragmentName(graphName, group.WorkerID()), id); err != nil {
		return nil, fmerr.Annotatef(err, "naming fragment %s for graph %q", id, graphName)
	}
	ctxlog.FromContext(ctx).Debug("Committed fragment.", "graph", graphName, "object", id, "kind", kind, "vertices", vertices, "edges", edges)
	return fragment.New(graphName, id, kind, directed, int64(vertices), int64(edges))
}
