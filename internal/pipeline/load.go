package pipeline

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/fragmesh/internal/ctxlog"
	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/fsutil"
)

// LoadPlan reads one plan file or a directory of .hcl plan files, merges
// their op blocks in file order, and builds the validated plan.
func LoadPlan(ctx context.Context, path string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading plan.", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("finding plan files in %s", path))
	}
	if len(files) == 0 {
		logger.Warn("No .hcl plan files found in path, returning an empty plan.", "path", path)
		return NewPlan(nil)
	}

	parser := hclparse.NewParser()
	var ops []*Op
	for _, file := range files {
		fileOps, err := decodePlanFile(parser, file)
		if err != nil {
			return nil, err
		}
		ops = append(ops, fileOps...)
	}
	logger.Debug("Plan files decoded.", "files", len(files), "ops", len(ops))
	return NewPlan(ops)
}

// decodePlanFile parses a single HCL file and returns the ops found within.
func decodePlanFile(parser *hclparse.Parser, file string) ([]*Op, error) {
	hclFile, diags := parser.ParseHCLFile(file)
	if diags.HasErrors() {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, diags, fmt.Sprintf("failed to parse plan file %s", file))
	}

	var parsed hclPlanFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, diags, fmt.Sprintf("failed to decode plan file %s", file))
	}

	ops := make([]*Op, 0, len(parsed.Ops))
	for _, raw := range parsed.Ops {
		op, err := newOp(raw, file)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
