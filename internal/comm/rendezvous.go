package comm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/objstore"
)

// Rendezvous is an opt-in consistency check for group operations. Every rank
// publishes a fingerprint of the operation it is about to invoke under a
// well-known store name and waits until the whole group has published; if any
// two ranks disagree, the operation is refused before it can touch the graph.
//
// The engine's base contract leaves call discipline to the caller (every
// rank must issue the same operations in the same order), so the check is off
// unless an invoker is constructed with one.
type Rendezvous struct {
	spec   *Spec
	client objstore.Client
	scope  string
	seq    atomic.Int64
	poll   time.Duration
}

// NewRendezvous builds the check for one group. scope isolates concurrent
// groups sharing a store; the flag token is the conventional choice.
func NewRendezvous(spec *Spec, client objstore.Client, scope string) *Rendezvous {
	return &Rendezvous{
		spec:   spec,
		client: client,
		scope:  scope,
		poll:   10 * time.Millisecond,
	}
}

// Sync publishes this rank's fingerprint for the next synchronization point
// and blocks until every rank in the group has published one. It fails with
// an invalid-operation error when the group diverges, and with the context's
// error when cancelled while waiting for stragglers.
func (r *Rendezvous) Sync(ctx context.Context, fingerprint string) error {
	seq := r.seq.Add(1) - 1

	id, err := r.client.CreateObject(ctx, map[string]string{
		"rank": strconv.Itoa(r.spec.WorkerID()),
	}, []byte(fingerprint))
	if err != nil {
		return fmerr.Annotate(err, "publishing rendezvous fingerprint")
	}
	if err := r.client.Persist(ctx, id); err != nil {
		return fmerr.Annotate(err, "publishing rendezvous fingerprint")
	}
	if err := r.client.PutName(ctx, r.slotName(seq, r.spec.WorkerID()), id); err != nil {
		return fmerr.Annotate(err, "publishing rendezvous fingerprint")
	}

	prefix := fmt.Sprintf("barrier/%s/%d/", r.scope, seq)
	for {
		names, err := r.client.ListNames(ctx, prefix)
		if err != nil {
			return fmerr.Annotate(err, "waiting for rendezvous peers")
		}
		if len(names) >= r.spec.WorkerNum() {
			return r.verify(ctx, names, fingerprint)
		}
		select {
		case <-ctx.Done():
			return fmerr.Wrap(fmerr.KindInvalidOperation, ctx.Err(),
				fmt.Sprintf("rendezvous abandoned with %d of %d ranks present", len(names), r.spec.WorkerNum()))
		case <-time.After(r.poll):
		}
	}
}

func (r *Rendezvous) slotName(seq int64, rank int) string {
	return fmt.Sprintf("barrier/%s/%d/%d", r.scope, seq, rank)
}

// verify compares every published fingerprint against the local one.
func (r *Rendezvous) verify(ctx context.Context, slots map[string]objstore.ObjectID, fingerprint string) error {
	var divergent []string
	for name, id := range slots {
		obj, err := r.client.GetObject(ctx, id)
		if err != nil {
			return fmerr.Annotate(err, "reading rendezvous fingerprint")
		}
		if string(obj.Payload) != fingerprint {
			divergent = append(divergent, fmt.Sprintf("%s=%q", name, obj.Payload))
		}
	}
	if len(divergent) > 0 {
		sort.Strings(divergent)
		return fmerr.Newf(fmerr.KindInvalidOperation,
			"group diverged: rank %d is invoking %q but saw %v", r.spec.WorkerID(), fingerprint, divergent)
	}
	return nil
}
