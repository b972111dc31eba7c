package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vk/fragmesh/internal/fmerr"
)

// Placeholders a launch config template may carry. The supervisor fills
// both before a worker ever reads the file.
const (
	PlaceholderObjectID  = "{OBJECT_ID}"
	PlaceholderWorkerNum = "{WORKER_NUM}"
)

// RenderTemplate substitutes the shared object identifier and the total
// worker count into a config template.
func RenderTemplate(template, objectID string, workerNum int) string {
	out := strings.ReplaceAll(template, PlaceholderObjectID, objectID)
	return strings.ReplaceAll(out, PlaceholderWorkerNum, strconv.Itoa(workerNum))
}

// RenderTemplateFile reads the template at src and returns its rendered
// contents.
func RenderTemplateFile(src, objectID string, workerNum int) ([]byte, error) {
	raw, err := os.ReadFile(src)
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindInvalidArgument, err, fmt.Sprintf("reading config template %s", src))
	}
	return []byte(RenderTemplate(string(raw), objectID, workerNum)), nil
}
