// Package comm models the fixed group of worker processes cooperating on one
// distributed graph instance. Workers share no address space; the only things
// a worker knows about its peers are the rank set captured here and whatever
// the group publishes through the shared object store.
package comm

import (
	"fmt"

	"github.com/vk/fragmesh/internal/fmerr"
)

// Spec is one worker's view of its group: the ordered rank set plus the local
// rank. It is constructed once per process and never mutated afterwards, and
// every member of a group observes the same rank count and ordering.
type Spec struct {
	local int
	base  int
	num   int
}

// NewSpec builds the group view for the canonical numbering, ranks 0..num-1.
func NewSpec(local, num int) (*Spec, error) {
	return NewSpecWithBase(local, 0, num)
}

// NewSpecWithBase builds the group view for a group whose ranks start at
// base: base..base+num-1. Launch deployments that number their workers from
// an offset use this form; everything downstream only ever sees the rank set.
func NewSpecWithBase(local, base, num int) (*Spec, error) {
	if num <= 0 {
		return nil, fmerr.Newf(fmerr.KindInvalidArgument, "worker group size must be positive, got %d", num)
	}
	if base < 0 {
		return nil, fmerr.Newf(fmerr.KindInvalidArgument, "base rank must not be negative, got %d", base)
	}
	if local < base || local >= base+num {
		return nil, fmerr.Newf(fmerr.KindInvalidArgument, "worker rank %d outside group [%d,%d)", local, base, base+num)
	}
	return &Spec{local: local, base: base, num: num}, nil
}

// WorkerID returns the local rank.
func (s *Spec) WorkerID() int { return s.local }

// WorkerIndex returns the local rank's position within the group, in [0,num).
func (s *Spec) WorkerIndex() int { return s.local - s.base }

// WorkerNum returns the group size.
func (s *Spec) WorkerNum() int { return s.num }

// Ranks returns the group's rank ordering. Identical on every member.
func (s *Spec) Ranks() []int {
	ranks := make([]int, s.num)
	for i := range ranks {
		ranks[i] = s.base + i
	}
	return ranks
}

// String renders the local view, e.g. "worker 2 of [2,6)".
func (s *Spec) String() string {
	return fmt.Sprintf("worker %d of [%d,%d)", s.local, s.base, s.base+s.num)
}
