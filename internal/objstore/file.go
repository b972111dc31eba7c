package objstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/vk/fragmesh/internal/fmerr"
)

func init() {
	RegisterScheme("file", func(endpoint string) (Client, error) {
		return NewFileClient(endpoint)
	})
}

const (
	stagingDir   = "staging"
	committedDir = "objects"
	namesDir     = "names"
)

// FileClient keeps the store in a directory tree so workers of one group can
// share artifacts through the filesystem. Created objects land in staging/,
// Persist renames them into objects/, and name bindings are files under
// names/. Renames on one filesystem are atomic, so a reader never observes a
// half-written artifact.
type FileClient struct {
	root string

	mu     sync.Mutex
	closed bool
}

type fileObject struct {
	Meta    map[string]string `json:"meta,omitempty"`
	Payload []byte            `json:"payload,omitempty"`
}

// NewFileClient opens (and if needed creates) a directory-backed store
// rooted at the given path.
func NewFileClient(root string) (*FileClient, error) {
	if root == "" {
		return nil, fmerr.New(fmerr.KindInvalidArgument, "file store root must not be empty")
	}
	for _, sub := range []string{stagingDir, committedDir, namesDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmerr.Wrap(fmerr.KindStorage, err, "preparing file store layout")
		}
	}
	return &FileClient{root: root}, nil
}

func (c *FileClient) guard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	return nil
}

func (c *FileClient) objectPath(dir string, id ObjectID) string {
	return filepath.Join(c.root, dir, id.String()+".json")
}

// CreateObject implements Client. The fresh object stays in staging until
// Persist moves it into the committed tree.
func (c *FileClient) CreateObject(_ context.Context, meta map[string]string, payload []byte) (ObjectID, error) {
	if err := c.guard(); err != nil {
		return NilObject, err
	}
	record, err := jsoniter.Marshal(fileObject{Meta: meta, Payload: payload})
	if err != nil {
		return NilObject, fmerr.Wrap(fmerr.KindStorage, err, "encoding object record")
	}
	for attempt := 0; attempt < 8; attempt++ {
		id := RandomObjectID()
		f, err := os.OpenFile(c.objectPath(stagingDir, id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return NilObject, fmerr.Wrap(fmerr.KindStorage, err, "creating object file")
		}
		if _, err := f.Write(record); err != nil {
			f.Close()
			return NilObject, fmerr.Wrap(fmerr.KindStorage, err, "writing object record")
		}
		if err := f.Close(); err != nil {
			return NilObject, fmerr.Wrap(fmerr.KindStorage, err, "closing object file")
		}
		return id, nil
	}
	return NilObject, fmerr.New(fmerr.KindStorage, "could not allocate a fresh object id")
}

// GetObject implements Client. Committed objects shadow staged ones.
func (c *FileClient) GetObject(_ context.Context, id ObjectID) (*Object, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	record, persisted, err := c.readRecord(id)
	if err != nil {
		return nil, err
	}
	var fo fileObject
	if err := jsoniter.Unmarshal(record, &fo); err != nil {
		return nil, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("decoding object %s", id))
	}
	return &Object{ID: id, Meta: fo.Meta, Payload: fo.Payload, Persisted: persisted}, nil
}

func (c *FileClient) readRecord(id ObjectID) (record []byte, persisted bool, err error) {
	record, err = os.ReadFile(c.objectPath(committedDir, id))
	if err == nil {
		return record, true, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("reading object %s", id))
	}
	record, err = os.ReadFile(c.objectPath(stagingDir, id))
	if os.IsNotExist(err) {
		return nil, false, fmerr.Newf(fmerr.KindNotFound, "object %s does not exist", id)
	}
	if err != nil {
		return nil, false, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("reading object %s", id))
	}
	return record, false, nil
}

// Persist implements Client. Persisting twice is a no-op.
func (c *FileClient) Persist(_ context.Context, id ObjectID) error {
	if err := c.guard(); err != nil {
		return err
	}
	committed := c.objectPath(committedDir, id)
	if _, err := os.Stat(committed); err == nil {
		return nil
	}
	err := os.Rename(c.objectPath(stagingDir, id), committed)
	if os.IsNotExist(err) {
		return fmerr.Newf(fmerr.KindNotFound, "object %s does not exist", id)
	}
	if err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("persisting object %s", id))
	}
	return nil
}

// Delete implements Client.
func (c *FileClient) Delete(_ context.Context, id ObjectID) error {
	if err := c.guard(); err != nil {
		return err
	}
	var removed bool
	for _, dir := range []string{committedDir, stagingDir} {
		err := os.Remove(c.objectPath(dir, id))
		if err == nil {
			removed = true
			continue
		}
		if !os.IsNotExist(err) {
			return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("deleting object %s", id))
		}
	}
	if !removed {
		return fmerr.Newf(fmerr.KindNotFound, "object %s does not exist", id)
	}
	return nil
}

func (c *FileClient) namePath(name string) string {
	return filepath.Join(c.root, namesDir, filepath.FromSlash(name))
}

// PutName implements Client. Names are slash-separated paths, so bindings
// like "barrier/<token>/0/2" nest naturally.
func (c *FileClient) PutName(_ context.Context, name string, id ObjectID) error {
	if err := c.guard(); err != nil {
		return err
	}
	if name == "" {
		return fmerr.New(fmerr.KindInvalidArgument, "name must not be empty")
	}
	if _, _, err := c.readRecord(id); err != nil {
		return err
	}
	path := c.namePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("preparing name %q", name))
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".name-*")
	if err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("binding name %q", name))
	}
	if _, err := tmp.WriteString(id.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("binding name %q", name))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("binding name %q", name))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("binding name %q", name))
	}
	return nil
}

// GetName implements Client.
func (c *FileClient) GetName(_ context.Context, name string) (ObjectID, error) {
	if err := c.guard(); err != nil {
		return NilObject, err
	}
	raw, err := os.ReadFile(c.namePath(name))
	if os.IsNotExist(err) {
		return NilObject, fmerr.Newf(fmerr.KindNotFound, "name %q is not bound", name)
	}
	if err != nil {
		return NilObject, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("resolving name %q", name))
	}
	id, err := ParseObjectID(string(raw))
	if err != nil {
		return NilObject, fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("name %q holds a malformed id", name))
	}
	return id, nil
}

// ListNames implements Client.
func (c *FileClient) ListNames(_ context.Context, prefix string) (map[string]ObjectID, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	base := filepath.Join(c.root, namesDir)
	out := make(map[string]ObjectID)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".name-") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		id, err := ParseObjectID(string(raw))
		if err != nil {
			return err
		}
		out[name] = id
		return nil
	})
	if err != nil {
		return nil, fmerr.Wrap(fmerr.KindStorage, err, "listing names")
	}
	return out, nil
}

// DropName implements Client.
func (c *FileClient) DropName(_ context.Context, name string) error {
	if err := c.guard(); err != nil {
		return err
	}
	err := os.Remove(c.namePath(name))
	if os.IsNotExist(err) {
		return fmerr.Newf(fmerr.KindNotFound, "name %q is not bound", name)
	}
	if err != nil {
		return fmerr.Wrap(fmerr.KindStorage, err, fmt.Sprintf("dropping name %q", name))
	}
	return nil
}

// Close implements Client.
func (c *FileClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
