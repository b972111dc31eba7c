package comm

import (
	"strings"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/objstore"
)

// tokenPrefix marks a worker command-line token as a graph-group binding.
const tokenPrefix = "graph."

// FlagToken derives the command-line token the launch supervisor passes to
// every worker of one group. The token carries the shared object identifier,
// so a worker can assert at startup that its config file and its command line
// agree about which graph instance it belongs to.
func FlagToken(id objstore.ObjectID) string {
	return tokenPrefix + id.String()
}

// ParseFlagToken recovers the shared object identifier from a launch token.
func ParseFlagToken(token string) (objstore.ObjectID, error) {
	raw, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return objstore.NilObject, fmerr.Newf(fmerr.KindInvalidArgument, "malformed flag token %q, want %q prefix", token, tokenPrefix)
	}
	id, err := objstore.ParseObjectID(raw)
	if err != nil {
		return objstore.NilObject, fmerr.Annotatef(err, "malformed flag token %q", token)
	}
	return id, nil
}
