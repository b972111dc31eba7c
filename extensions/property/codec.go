package property

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	jsoniter "github.com/json-iterator/go"

	"github.com/vk/fragmesh/internal/fmerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// graphRecord is the row-oriented payload of a dynamic fragment.
type graphRecord struct {
	Directed bool        `json:"directed"`
	Vertices []string    `json:"vertices"`
	Edges    [][2]string `json:"edges"`
}

// arrowRecord is the columnar payload: the vertex column plus parallel
// source/target edge columns.
type arrowRecord struct {
	Directed bool     `json:"directed"`
	Vertices []string `json:"vertices"`
	EdgeSrc  []string `json:"edge_src"`
	EdgeDst  []string `json:"edge_dst"`
}

// rows converts the columnar record back to row form, which is how a
// dynamic view reads a columnar artifact.
func (a arrowRecord) rows() graphRecord {
	rec := graphRecord{Directed: a.Directed, Vertices: a.Vertices}
	for i := range a.EdgeSrc {
		rec.Edges = append(rec.Edges, [2]string{a.EdgeSrc[i], a.EdgeDst[i]})
	}
	return rec
}

func encodeGraph(rec graphRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindInternal, err, "encoding fragment payload")
	}
	return payload, nil
}

func decodeGraph(payload []byte) (graphRecord, error) {
	var rec graphRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return graphRecord{}, fmerr.Wrap(fmerr.KindStorage, err, "fragment payload is corrupt")
	}
	return rec, nil
}

func encodeArrow(rec arrowRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindInternal, err, "encoding columnar payload")
	}
	return payload, nil
}

func decodeArrow(payload []byte) (arrowRecord, error) {
	var rec arrowRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return arrowRecord{}, fmerr.Wrap(fmerr.KindStorage, err, "columnar payload is corrupt")
	}
	return rec, nil
}

// splitColumns splits a data line on commas and whitespace, so both CSV and
// space-separated inputs parse.
func splitColumns(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// readVertexFile returns the vertex ids named in path: first column per
// line, blank lines and #-comments skipped.
func readVertexFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("vertex file %q", path))
	}
	defer f.Close()

	var vertices []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vertices = append(vertices, splitColumns(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("reading vertex file %q", path))
	}
	return vertices, nil
}

// readEdgeFile returns the (source, target) pairs named in path: first two
// columns per line, blank lines and #-comments skipped.
func readEdgeFile(path string) ([][2]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("edge file %q", path))
	}
	defer f.Close()

	var edges [][2]string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := splitColumns(line)
		if len(cols) < 2 {
			return nil, fmerr.Newf(fmerr.KindInvalidArgument, "edge file %s:%d: expected source and target columns", path, lineNo)
		}
		edges = append(edges, [2]string{cols[0], cols[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("reading edge file %q", path))
	}
	return edges, nil
}
