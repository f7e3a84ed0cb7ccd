package changelog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/ordertrail/internal/master"
	"github.com/roach88/ordertrail/internal/normalize"
)

// Years returns the distinct fiscal years the create and update rows need,
// ascending. Rows whose year cannot be resolved contribute nothing.
func Years(rows []LogRow) []int {
	seen := make(map[int]bool)
	var years []int
	for _, row := range rows {
		if row.Action != ActionCreate && row.Action != ActionUpdate {
			continue
		}
		beforeDoc, _ := normalize.Decode(row.BeforeData)
		afterDoc, _ := normalize.Decode(row.AfterData)
		y := ResolveYear(row, beforeDoc, afterDoc)
		if y == 0 || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// Prefetch loads the master of every year rows need, one goroutine per
// year, and returns a loader over the results.
//
// A year the source does not have is not an error here: the returned
// loader reports it as master.ErrNotFound and the affected rows are
// skipped. Any other source error cancels the remaining loads and fails
// the prefetch.
func Prefetch(ctx context.Context, rows []LogRow, src master.Source) (Loader, error) {
	years := Years(rows)

	var mu sync.Mutex
	loaded := make(map[int]master.Master, len(years))

	g, gctx := errgroup.WithContext(ctx)
	for _, year := range years {
		g.Go(func() error {
			m, err := src.Load(gctx, year)
			if errors.Is(err, master.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("prefetch master %d: %w", year, err)
			}
			mu.Lock()
			loaded[year] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return func(_ context.Context, year int) (master.Master, error) {
		m, ok := loaded[year]
		if !ok {
			return master.Master{}, fmt.Errorf("year %d: %w", year, master.ErrNotFound)
		}
		return m, nil
	}, nil
}
