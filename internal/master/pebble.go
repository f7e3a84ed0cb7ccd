package master

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore persists masters in PebbleDB, one key per settings partition.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (or creates) a Pebble database at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the underlying database.
func (p *PebbleStore) Close() error { return p.db.Close() }

// Put writes m under its year's partition, replacing any previous master.
func (p *PebbleStore) Put(_ context.Context, m Master) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode master %d: %w", m.Year, err)
	}
	if err := p.db.Set([]byte(Partition(m.Year)), b, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", Partition(m.Year), err)
	}
	return nil
}

// Load implements Source.
func (p *PebbleStore) Load(ctx context.Context, year int) (Master, error) {
	if err := ctx.Err(); err != nil {
		return Master{}, err
	}
	key := Partition(year)
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return Master{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Master{}, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()

	var m Master
	if err := json.Unmarshal(v, &m); err != nil {
		return Master{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return m, nil
}
