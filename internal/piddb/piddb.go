// Package piddb persists launched worker process records in a small
// on-disk key/value database, keyed by object ID and rank, so a later
// launcher invocation can find, health-check, or stop the group.
package piddb

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/vk/fragmesh/internal/fmerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// keySepa separates the segments of a record key.
const keySepa = "##"

// collection prefixes every worker record key.
const collection = "worker"

// Record is one launched worker process.
type Record struct {
	ObjectID   string    `json:"object_id"`
	Rank       int       `json:"rank"`
	PID        int       `json:"pid"`
	LogDir     string    `json:"log_dir"`
	ConfigPath string    `json:"config_path"`
	HealthPort int       `json:"health_port"`
	StartedAt  time.Time `json:"started_at"`
}

// Key returns the database key for this record.
func (r Record) Key() string { return Key(r.ObjectID, r.Rank) }

// Key builds the worker##<objectID>##<rank> key for one worker record.
func Key(objectID string, rank int) string {
	return strings.Join([]string{collection, objectID, strconv.Itoa(rank)}, keySepa)
}

// Store is a process registry backed by a buntdb file. The special path
// ":memory:" keeps the registry in memory, which tests use.
type Store struct {
	db *buntdb.DB
}

// Open opens the registry database at path, creating it if needed.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("opening process registry %s", path))
	}
	return &Store{db: db}, nil
}

// Close syncs and closes the registry.
func (s *Store) Close() error { return s.db.Close() }

// Put stores or replaces the record for (object ID, rank).
func (s *Store) Put(rec Record) error {
	if rec.ObjectID == "" {
		return fmerr.New(fmerr.KindInvalidArgument, "record needs an object id")
	}
	if rec.Rank < 0 {
		return fmerr.Newf(fmerr.KindInvalidArgument, "record rank %d is negative", rec.Rank)
	}
	data, err := json.MarshalToString(rec)
	if err != nil {
		return fmerr.Wrap(fmerr.KindInternal, err, "encoding worker record")
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(rec.Key(), data, nil)
		return err
	})
	if err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("storing worker record %s", rec.Key()))
	}
	return nil
}

// Get fetches the record for (object ID, rank).
func (s *Store) Get(objectID string, rank int) (Record, error) {
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(Key(objectID, rank))
		raw = v
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return Record{}, fmerr.Newf(fmerr.KindNotFound, "no worker record for %s rank %d", objectID, rank)
	}
	if err != nil {
		return Record{}, fmerr.Wrap(fmerr.KindStorage, err, "reading worker record")
	}
	var rec Record
	if err := json.UnmarshalFromString(raw, &rec); err != nil {
		return Record{}, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("worker record %s is corrupt", Key(objectID, rank)))
	}
	return rec, nil
}

// List returns every record for the given object ID ordered by rank.
func (s *Store) List(objectID string) ([]Record, error) {
	pattern := strings.Join([]string{collection, objectID, "*"}, keySepa)
	var raws []string
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(pattern, func(key, value string) bool {
			raws = append(raws, value)
			return true
		})
	})
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("listing worker records for %s", objectID))
	}
	recs := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var rec Record
		if err := json.UnmarshalFromString(raw, &rec); err != nil {
			return nil, fmerr.Wrap(fmerr.KindStorage, err, "worker record is corrupt")
		}
		recs = append(recs, rec)
	}
	// Keys sort lexicographically, which would put rank 10 before rank 2.
	sort.Slice(recs, func(i, j int) bool { return recs[i].Rank < recs[j].Rank })
	return recs, nil
}

// Delete removes the record for (object ID, rank).
func (s *Store) Delete(objectID string, rank int) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(Key(objectID, rank))
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return fmerr.Newf(fmerr.KindNotFound, "no worker record for %s rank %d", objectID, rank)
	}
	if err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, "deleting worker record")
	}
	return nil
}

// DeleteAll removes every record for the given object ID and reports how
// many were dropped.
func (s *Store) DeleteAll(objectID string) (int, error) {
	pattern := strings.Join([]string{collection, objectID, "*"}, keySepa)
	deleted := 0
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		if err := tx.AscendKeys(pattern, func(key, value string) bool {
			keys = append(keys, key)
			return true
		}); err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("deleting worker records for %s", objectID))
	}
	return deleted, nil
}
