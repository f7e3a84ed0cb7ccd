package logstore

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/ordertrail/internal/format"
)

// nullableBlob stores an absent or empty raw blob as NULL.
func nullableBlob(raw json.RawMessage) sql.NullString {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func blob(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

// marshalPayload converts a cancellation payload to JSON TEXT.
// HTML escaping is disabled so stored text matches what clients sent.
func marshalPayload(v any) (sql.NullString, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return sql.NullString{}, fmt.Errorf("marshal payload: %w", err)
	}
	return sql.NullString{String: strings.TrimSpace(buf.String()), Valid: true}, nil
}

func marshalCanceledOrder(c *format.CanceledOrder) (sql.NullString, error) {
	if c == nil {
		return sql.NullString{}, nil
	}
	return marshalPayload(c)
}

func marshalCanceledOrders(cs []format.CanceledOrder) (sql.NullString, error) {
	if len(cs) == 0 {
		return sql.NullString{}, nil
	}
	return marshalPayload(cs)
}

func unmarshalCanceledOrder(ns sql.NullString) (*format.CanceledOrder, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var c format.CanceledOrder
	if err := json.Unmarshal([]byte(ns.String), &c); err != nil {
		return nil, fmt.Errorf("unmarshal canceled order: %w", err)
	}
	return &c, nil
}

func unmarshalCanceledOrders(ns sql.NullString) ([]format.CanceledOrder, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var cs []format.CanceledOrder
	if err := json.Unmarshal([]byte(ns.String), &cs); err != nil {
		return nil, fmt.Errorf("unmarshal canceled orders: %w", err)
	}
	return cs, nil
}

// Timestamps are kept at millisecond precision, the resolution clients send.
func timestampMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func millisTimestamp(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.UnixMilli(n.Int64).UTC()
}
