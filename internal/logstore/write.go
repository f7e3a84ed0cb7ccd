package logstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/ordertrail/internal/changelog"
)

// ErrMissingField is returned when a row lacks a required field.
var ErrMissingField = errors.New("missing required field")

// WriteRow inserts a log row into the store.
// Uses ON CONFLICT(log_id) DO NOTHING for idempotency - duplicate ids are silently ignored.
// It reports whether the row was newly inserted.
func (s *Store) WriteRow(ctx context.Context, row changelog.LogRow) (bool, error) {
	if row.LogID == "" {
		return false, fmt.Errorf("write row: logId: %w", ErrMissingField)
	}
	if row.ReceptionNumber == "" {
		return false, fmt.Errorf("write row %q: receptionNumber: %w", row.LogID, ErrMissingField)
	}
	if !row.Action.Valid() {
		return false, fmt.Errorf("write row %q: unknown action %q", row.LogID, row.Action)
	}

	canceledOrder, err := marshalCanceledOrder(row.CanceledOrder)
	if err != nil {
		return false, fmt.Errorf("write row %q: %w", row.LogID, err)
	}
	canceledOrders, err := marshalCanceledOrders(row.CanceledOrders)
	if err != nil {
		return false, fmt.Errorf("write row %q: %w", row.LogID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO log_rows
		(log_id, reception_number, ts_ms, action, before_data, after_data, canceled_order, canceled_orders)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(log_id) DO NOTHING
	`,
		row.LogID,
		row.ReceptionNumber,
		timestampMillis(row.Timestamp),
		string(row.Action),
		nullableBlob(row.BeforeData),
		nullableBlob(row.AfterData),
		canceledOrder,
		canceledOrders,
	)
	if err != nil {
		return false, fmt.Errorf("write row %q: %w", row.LogID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write row %q: %w", row.LogID, err)
	}
	return n == 1, nil
}

// ImportResult summarizes an import.
type ImportResult struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
	Minted   int `json:"minted"`
}

// maxLineSize bounds one JSONL record; snapshots of large receptions run long.
const maxLineSize = 16 << 20

// ImportJSONL reads one log row per line and writes each to the store.
// Blank lines are skipped. A row without a logId gets a fresh UUIDv7, so
// re-importing such a row a second time duplicates it.
func (s *Store) ImportJSONL(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var row changelog.LogRow
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Read++

		if row.LogID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return res, fmt.Errorf("line %d: mint log id: %w", line, err)
			}
			row.LogID = id.String()
			res.Minted++
		}

		inserted, err := s.WriteRow(ctx, row)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		if inserted {
			res.Inserted++
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read import: %w", err)
	}
	return res, nil
}
