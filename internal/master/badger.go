package master

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore persists masters in BadgerDB, one key per settings partition.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a Badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error { return b.db.Close() }

// Put writes m under its year's partition, replacing any previous master.
func (b *BadgerStore) Put(_ context.Context, m Master) error {
	val, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode master %d: %w", m.Year, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(Partition(m.Year)), val)
	})
}

// Load implements Source.
func (b *BadgerStore) Load(ctx context.Context, year int) (Master, error) {
	if err := ctx.Err(); err != nil {
		return Master{}, err
	}
	key := Partition(year)
	var m Master
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(v, &m)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Master{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Master{}, fmt.Errorf("badger get %s: %w", key, err)
	}
	return m, nil
}
