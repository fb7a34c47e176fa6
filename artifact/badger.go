package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
)

// BadgerConfig configures an embedded BadgerDB store.
type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives BadgerDB's internal messages. Nil disables them.
	Logger log.Logger
}

// BadgerStore keeps artifacts as values in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

type badgerLogger struct {
	logger log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadgerStore opens (or creates) the database described by cfg.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.NewValidationError("path", "required for a persistent store", cfg.Path)
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, errors.Wrapf(err, "create database directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{logger: cfg.Logger.With(log.ComponentKey, "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger database")
	}
	return &BadgerStore{db: db}, nil
}

// Save stores the gob encoding of v under key.
func (s *BadgerStore) Save(ctx context.Context, key string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(&buf, v); err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf.Bytes())
	})
	if err != nil {
		return errors.NewPersistenceFailure(OpSave, key, err)
	}
	return nil
}

// Load decodes the value stored under key into v.
func (s *BadgerStore) Load(ctx context.Context, key string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPersistenceFailure(OpLoad, key, err)
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.NewPersistenceFailure(OpLoad, key, ErrNotFound)
	}
	if err != nil {
		return errors.NewPersistenceFailure(OpLoad, key, err)
	}
	if err := model.LoadModelFromReader(bytes.NewReader(data), v); err != nil {
		return errors.NewPersistenceFailure(OpLoad, key, err)
	}
	return nil
}

// Keys lists the stored keys in order.
func (s *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
