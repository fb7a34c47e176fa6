// Package artifact persists fitted preprocessors and models.
//
// Values are gob-encoded, so any interface-typed field must hold a type that
// was registered with gob.Register by its package.
package artifact

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// Persistence operations reported in PersistenceFailure.Op.
const (
	OpSave = "save"
	OpLoad = "load"
)

// ErrNotFound is wrapped by Load when the key does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store saves and loads gob-encoded values by key.
type Store interface {
	Save(ctx context.Context, key string, v interface{}) error
	Load(ctx context.Context, key string, v interface{}) error
	Close() error
}

// FileStore keeps one file per key below Root.
type FileStore struct {
	Root string
}

// NewFileStore returns a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Root: dir}
}

func (s *FileStore) path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.Root, key)
}

// Save writes v to a temporary file and renames it into place.
func (s *FileStore) Save(ctx context.Context, key string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(&buf, v); err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	return nil
}

// Load decodes the file for key into v, which must be a pointer.
func (s *FileStore) Load(ctx context.Context, key string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPersistenceFailure(OpLoad, key, err)
	}
	f, err := os.Open(s.path(key))
	if os.IsNotExist(err) {
		return errors.NewPersistenceFailure(OpLoad, key, ErrNotFound)
	}
	if err != nil {
		return errors.NewPersistenceFailure(OpLoad, key, err)
	}
	defer f.Close()
	if err := model.LoadModelFromReader(f, v); err != nil {
		return errors.NewPersistenceFailure(OpLoad, key, err)
	}
	return nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }
