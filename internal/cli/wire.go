package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ordertrail/internal/api"
	"github.com/roach88/ordertrail/internal/changelog"
	"github.com/roach88/ordertrail/internal/config"
	"github.com/roach88/ordertrail/internal/dynamo"
	"github.com/roach88/ordertrail/internal/logstore"
	"github.com/roach88/ordertrail/internal/master"
	"github.com/roach88/ordertrail/internal/metrics"
	"github.com/roach88/ordertrail/internal/publish"
)

// closers collects resources opened while wiring a command.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openMasters opens the configured master source. Dir wins over Pebble,
// Pebble over Badger.
func openMasters(cfg config.MastersConfig, cl *closers) (master.Source, error) {
	switch {
	case cfg.Dir != "":
		return master.NewDirSource(cfg.Dir), nil
	case cfg.Pebble != "":
		st, err := master.OpenPebbleStore(cfg.Pebble)
		if err != nil {
			return nil, err
		}
		*cl = append(*cl, st)
		return st, nil
	case cfg.Badger != "":
		st, err := master.OpenBadgerStore(cfg.Badger)
		if err != nil {
			return nil, err
		}
		*cl = append(*cl, st)
		return st, nil
	}
	return nil, errors.New("no master source: set --masters, --pebble or --badger")
}

// openRows opens the row store: DynamoDB when a table is configured,
// otherwise the SQLite file. The reception lister is nil for DynamoDB.
func openRows(ctx context.Context, cfg config.Config, logger *slog.Logger, cl *closers) (changelog.RowLister, api.ReceptionLister, error) {
	if cfg.Dynamo.Table != "" {
		client, err := dynamo.NewClient(ctx, cfg.Dynamo.Region, cfg.Dynamo.Endpoint, logger)
		if err != nil {
			return nil, nil, err
		}
		return dynamo.NewRowLister(client, cfg.Dynamo.Table, cfg.Dynamo.Index), nil, nil
	}
	if cfg.Store.DBPath == "" {
		return nil, nil, errors.New("no row store: set --db or a dynamo table")
	}
	st, err := logstore.Open(cfg.Store.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	*cl = append(*cl, st)
	return st, st, nil
}

// openSink returns the Kafka sink when brokers are configured, counted
// through reg when reg is non-nil. Returns nil when publishing is off.
func openSink(cfg config.KafkaConfig, reg *metrics.Registry, cl *closers) changelog.Sink {
	if cfg.Brokers == "" {
		return nil
	}
	k := publish.NewKafkaSink(cfg.Brokers, cfg.Topic)
	*cl = append(*cl, k)
	if reg == nil {
		return k
	}
	return &metrics.CountingSink{Next: k, Reg: reg}
}
