// Package changelog builds the human-readable audit trail of a reception
// from its stored log rows.
//
// Each create or update row is normalized on both sides against the master
// of its fiscal year, diffed, reconciled for topping changes and formatted.
// Cancellation rows are rendered from their own payload without touching
// the differ or the master. Entries come back newest first.
//
// A row that cannot be built (no year, no master, a panic while building)
// is skipped with a warning; the rest of the batch still renders.
package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/ordertrail/internal/diff"
	"github.com/roach88/ordertrail/internal/format"
	"github.com/roach88/ordertrail/internal/master"
	"github.com/roach88/ordertrail/internal/normalize"
	"github.com/roach88/ordertrail/internal/snapshot"
	"github.com/roach88/ordertrail/internal/topping"
)

// Loader returns the configuration master for a fiscal year.
// It returns an error wrapping master.ErrNotFound for an unknown year.
type Loader func(ctx context.Context, year int) (master.Master, error)

// SourceLoader adapts a master.Source to a Loader.
func SourceLoader(src master.Source) Loader {
	return src.Load
}

// Recorder receives per-row outcomes. The metrics package implements it.
type Recorder interface {
	RowBuilt(action Action, changes int)
	RowSkipped(code RowErrorCode)
	AnomalyDetected()
}

type nopRecorder struct{}

func (nopRecorder) RowBuilt(Action, int)     {}
func (nopRecorder) RowSkipped(RowErrorCode) {}
func (nopRecorder) AnomalyDetected()        {}

// YearZone is the zone a row timestamp is read in when the year has to be
// taken from it. Fiscal years follow the shop's local calendar.
var YearZone = time.FixedZone("JST", 9*60*60)

// Builder renders log rows into entries.
type Builder struct {
	Loader   Loader
	Logger   *slog.Logger
	Recorder Recorder
}

// NewBuilder returns a builder with a discarding logger and no metrics.
func NewBuilder(loader Loader) *Builder {
	return &Builder{
		Loader:   loader,
		Logger:   slog.New(slog.DiscardHandler),
		Recorder: nopRecorder{},
	}
}

// BuildChangeLog renders rows newest first, skipping rows that cannot be built.
func BuildChangeLog(ctx context.Context, rows []LogRow, loader Loader) []LogEntry {
	entries, _ := NewBuilder(loader).Build(ctx, rows)
	return entries
}

// Build renders rows newest first. Rows that could not be built are left
// out of the entries and reported as *RowError values in skipped.
func (b *Builder) Build(ctx context.Context, rows []LogRow) (entries []LogEntry, skipped []error) {
	entries = make([]LogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := b.buildRow(ctx, row)
		if err != nil {
			var re *RowError
			code := ErrCodeRowPanic
			if errors.As(err, &re) {
				code = re.Code
			}
			b.logger().Warn("skipping log row",
				"log_id", row.LogID,
				"action", string(row.Action),
				"code", string(code),
				"error", err)
			b.recorder().RowSkipped(code)
			skipped = append(skipped, err)
			continue
		}
		b.recorder().RowBuilt(row.Action, entry.ChangesCount)
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, skipped
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func (b *Builder) recorder() Recorder {
	if b.Recorder == nil {
		return nopRecorder{}
	}
	return b.Recorder
}

// buildRow renders one row. A panic is recovered into a ROW_PANIC error.
func (b *Builder) buildRow(ctx context.Context, row LogRow) (entry LogEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RowError{Code: ErrCodeRowPanic, LogID: row.LogID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if row.Unreadable != nil {
		return LogEntry{}, &RowError{Code: ErrCodeRowUnreadable, LogID: row.LogID, Err: row.Unreadable}
	}

	var changes []string
	switch row.Action {
	case ActionCancelSingle:
		changes = format.CanceledSingle(row.CanceledOrder)
	case ActionCancelAll:
		changes = format.CanceledAll(row.ReceptionNumber, row.CanceledOrders)
	case ActionCreate, ActionUpdate:
		changes, err = b.compare(ctx, row)
		if err != nil {
			return LogEntry{}, err
		}
	default:
		return LogEntry{}, &RowError{
			Code:  ErrCodeUnknownAction,
			LogID: row.LogID,
			Err:   fmt.Errorf("action %q", row.Action),
		}
	}
	if changes == nil {
		changes = []string{}
	}

	return LogEntry{
		LogID:           row.LogID,
		ReceptionNumber: row.ReceptionNumber,
		Timestamp:       row.Timestamp,
		OrderType:       row.Action.Label(),
		Changes:         changes,
		ChangesCount:    len(changes),
	}, nil
}

// compare renders a create or update row from its before/after blobs.
func (b *Builder) compare(ctx context.Context, row LogRow) ([]string, error) {
	beforeDoc := b.decode(row, "beforeData", row.BeforeData)
	afterDoc := b.decode(row, "afterData", row.AfterData)

	year := ResolveYear(row, beforeDoc, afterDoc)
	if year == 0 {
		return nil, &RowError{Code: ErrCodeYearUnresolved, LogID: row.LogID}
	}
	if b.Loader == nil {
		return nil, &RowError{Code: ErrCodeMasterUnavailable, LogID: row.LogID, Year: year, Err: errors.New("no master loader")}
	}
	m, err := b.Loader(ctx, year)
	if err != nil {
		code := ErrCodeMasterUnavailable
		if errors.Is(err, master.ErrNotFound) {
			code = ErrCodeMasterNotFound
		}
		return nil, &RowError{Code: code, LogID: row.LogID, Year: year, Err: err}
	}

	before := normalize.Document(beforeDoc, m)
	after := normalize.Document(afterDoc, m)

	changes, _ := format.FormatAll(diff.Diff(before, after), before, after)
	changes = append(changes, topping.Reconcile(before, after)...)
	if row.Action == ActionUpdate {
		for _, o := range legacyLines(before, after) {
			b.recorder().AnomalyDetected()
			changes = append(changes, format.LegacyAnomaly(o))
		}
	}
	return changes, nil
}

// decode parses one side of a row. A blob that cannot be parsed is logged
// and treated as absent.
func (b *Builder) decode(row LogRow, side string, raw json.RawMessage) map[string]any {
	doc, err := normalize.Decode(raw)
	if err != nil {
		b.logger().Warn("unreadable snapshot, treating as empty",
			"log_id", row.LogID,
			"side", side,
			"error", err)
		return nil
	}
	return doc
}

// ResolveYear picks the fiscal year of a row: the after snapshot's
// selected year, then the before snapshot's, then the year of the row
// timestamp in YearZone. It returns 0 when none is available.
func ResolveYear(row LogRow, beforeDoc, afterDoc map[string]any) int {
	if y := normalize.Year(afterDoc); y > 0 {
		return y
	}
	if y := normalize.Year(beforeDoc); y > 0 {
		return y
	}
	if !row.Timestamp.IsZero() {
		return row.Timestamp.In(YearZone).Year()
	}
	return 0
}

// legacyLines returns the positionally keyed order lines of either side,
// once per key, preferring after's copy.
func legacyLines(before, after snapshot.Snapshot) []snapshot.Order {
	seen := make(map[string]bool)
	var out []snapshot.Order
	for _, o := range after.LegacyOrders() {
		seen[o.InternalID] = true
		out = append(out, o)
	}
	for _, o := range before.LegacyOrders() {
		if !seen[o.InternalID] {
			out = append(out, o)
		}
	}
	return out
}
