package piddb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fragmesh/internal/fmerr"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(objectID string, rank int) Record {
	return Record{
		ObjectID:   objectID,
		Rank:       rank,
		PID:        1000 + rank,
		LogDir:     "/tmp/logs",
		ConfigPath: "/tmp/conf.hcl",
		HealthPort: 19000 + rank,
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "worker##o00000000000000ff##3", Key("o00000000000000ff", 3))
	r := rec("o00000000000000ff", 3)
	assert.Equal(t, Key(r.ObjectID, r.Rank), r.Key())
}

func TestPutGet(t *testing.T) {
	s := openMem(t)

	want := rec("oid", 2)
	require.NoError(t, s.Put(want))

	got, err := s.Get("oid", 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("replaces existing record", func(t *testing.T) {
		want.PID = 4242
		require.NoError(t, s.Put(want))
		got, err := s.Get("oid", 2)
		require.NoError(t, err)
		assert.Equal(t, 4242, got.PID)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := s.Get("oid", 99)
		require.Error(t, err)
		assert.Equal(t, fmerr.KindNotFound, fmerr.KindOf(err))
	})

	t.Run("invalid records rejected", func(t *testing.T) {
		err := s.Put(Record{Rank: 0})
		assert.Equal(t, fmerr.KindInvalidArgument, fmerr.KindOf(err))
		err = s.Put(Record{ObjectID: "oid", Rank: -1})
		assert.Equal(t, fmerr.KindInvalidArgument, fmerr.KindOf(err))
	})
}

func TestListOrdersByRank(t *testing.T) {
	s := openMem(t)

	// Insert out of order, with enough ranks that lexicographic key order
	// would differ from numeric order.
	for _, rank := range []int{10, 2, 0, 7} {
		require.NoError(t, s.Put(rec("oid", rank)))
	}
	require.NoError(t, s.Put(rec("other", 1)))

	recs, err := s.List("oid")
	require.NoError(t, err)
	require.Len(t, recs, 4)
	ranks := make([]int, 0, len(recs))
	for _, r := range recs {
		ranks = append(ranks, r.Rank)
	}
	assert.Equal(t, []int{0, 2, 7, 10}, ranks)
}

func TestDelete(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Put(rec("oid", 0)))

	require.NoError(t, s.Delete("oid", 0))
	_, err := s.Get("oid", 0)
	assert.Equal(t, fmerr.KindNotFound, fmerr.KindOf(err))

	err = s.Delete("oid", 0)
	assert.Equal(t, fmerr.KindNotFound, fmerr.KindOf(err))
}

func TestDeleteAll(t *testing.T) {
	s := openMem(t)
	for rank := 0; rank < 3; rank++ {
		require.NoError(t, s.Put(rec("oid", rank)))
	}
	require.NoError(t, s.Put(rec("other", 0)))

	n, err := s.DeleteAll("oid")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := s.List("oid")
	require.NoError(t, err)
	assert.Empty(t, recs)

	// The unrelated group survives.
	survivors, err := s.List("other")
	require.NoError(t, err)
	assert.Len(t, survivors, 1)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pids.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(rec("oid", 1)))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("oid", 1)
	require.NoError(t, err)
	assert.Equal(t, 1001, got.PID)
}
