package logstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ordertrail/internal/changelog"
)

// ListRows returns all rows of a reception.
// Results are ordered deterministically: ORDER BY ts_ms ASC, log_id ASC COLLATE BINARY.
// Rows without a timestamp sort first.
//
// A row whose stored payload cannot be decoded comes back as a
// changelog.UnreadableRow rather than failing the listing.
//
// Returns an empty slice (not nil) if the reception has no rows.
func (s *Store) ListRows(ctx context.Context, receptionNumber string) ([]changelog.LogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, reception_number, ts_ms, action, before_data, after_data, canceled_order, canceled_orders
		FROM log_rows
		WHERE reception_number = ?
		ORDER BY ts_ms ASC, log_id COLLATE BINARY ASC
	`, receptionNumber)
	if err != nil {
		return nil, fmt.Errorf("query log rows: %w", err)
	}
	defer rows.Close()

	out := []changelog.LogRow{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			var bad *payloadError
			if !errors.As(err, &bad) {
				return nil, err
			}
			row = changelog.UnreadableRow(bad.logID, receptionNumber, bad.err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log rows: %w", err)
	}
	return out, nil
}

// ReadRow returns one row by log id. Returns sql.ErrNoRows (wrapped) when absent.
func (s *Store) ReadRow(ctx context.Context, logID string) (changelog.LogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, reception_number, ts_ms, action, before_data, after_data, canceled_order, canceled_orders
		FROM log_rows
		WHERE log_id = ?
	`, logID)
	if err != nil {
		return changelog.LogRow{}, fmt.Errorf("query log row: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return changelog.LogRow{}, fmt.Errorf("query log row: %w", err)
		}
		return changelog.LogRow{}, fmt.Errorf("log row %q: %w", logID, sql.ErrNoRows)
	}
	return scanRow(rows)
}

// Receptions lists every reception number with at least one row,
// in binary order.
func (s *Store) Receptions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT reception_number
		FROM log_rows
		ORDER BY reception_number COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query receptions: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan reception: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receptions: %w", err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows) (changelog.LogRow, error) {
	var (
		row                           changelog.LogRow
		action                        string
		ts                            sql.NullInt64
		before, after                 sql.NullString
		canceledOrder, canceledOrders sql.NullString
	)
	if err := rows.Scan(&row.LogID, &row.ReceptionNumber, &ts, &action, &before, &after, &canceledOrder, &canceledOrders); err != nil {
		return changelog.LogRow{}, fmt.Errorf("scan log row: %w", err)
	}

	row.Action = changelog.Action(action)
	row.Timestamp = millisTimestamp(ts)
	row.BeforeData = blob(before)
	row.AfterData = blob(after)

	var err error
	if row.CanceledOrder, err = unmarshalCanceledOrder(canceledOrder); err != nil {
		return changelog.LogRow{}, &payloadError{logID: row.LogID, err: err}
	}
	if row.CanceledOrders, err = unmarshalCanceledOrders(canceledOrders); err != nil {
		return changelog.LogRow{}, &payloadError{logID: row.LogID, err: err}
	}
	return row, nil
}

// payloadError is a row that scanned but whose stored payload did not decode.
type payloadError struct {
	logID string
	err   error
}

func (e *payloadError) Error() string { return fmt.Sprintf("log row %q: %v", e.logID, e.err) }

func (e *payloadError) Unwrap() error { return e.err }
