package changelog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/ordertrail/internal/format"
	"github.com/roach88/ordertrail/internal/ir"
)

// Action is what the client did to the reception when the row was written.
type Action string

const (
	ActionCreate       Action = "CREATE"
	ActionUpdate       Action = "UPDATE"
	ActionCancelSingle Action = "CANCEL_SINGLE"
	ActionCancelAll    Action = "CANCEL_ALL"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionCancelSingle, ActionCancelAll:
		return true
	}
	return false
}

// Label returns the display label shown as a log entry's order type.
func (a Action) Label() string {
	switch a {
	case ActionCreate:
		return "新規注文"
	case ActionUpdate:
		return "注文変更"
	case ActionCancelSingle:
		return "注文キャンセル"
	case ActionCancelAll:
		return "全注文キャンセル"
	}
	return string(a)
}

// LogRow is one stored audit row.
//
// BeforeData and AfterData hold the raw order-state blobs exactly as
// stored; they are only decoded when the row is built. Cancellation rows
// carry CanceledOrder or CanceledOrders instead.
type LogRow struct {
	LogID           string                 `json:"logId"`
	ReceptionNumber string                 `json:"receptionNumber"`
	Timestamp       time.Time              `json:"timestamp"`
	Action          Action                 `json:"action"`
	BeforeData      json.RawMessage        `json:"beforeData,omitempty"`
	AfterData       json.RawMessage        `json:"afterData,omitempty"`
	CanceledOrder   *format.CanceledOrder  `json:"canceledOrder,omitempty"`
	CanceledOrders  []format.CanceledOrder `json:"canceledOrders,omitempty"`

	// Unreadable is set by a row lister when the stored row could not be
	// decoded. Only the identifying fields are filled in.
	Unreadable error `json:"-"`
}

// UnreadableRow is what a row lister returns for a stored row it failed
// to decode, so the row is skipped without failing the listing.
func UnreadableRow(logID, receptionNumber string, err error) LogRow {
	return LogRow{LogID: logID, ReceptionNumber: receptionNumber, Unreadable: err}
}

// UnmarshalJSON accepts the timestamp as an RFC 3339 string, a string of
// epoch milliseconds, or a JSON number of epoch milliseconds.
func (r *LogRow) UnmarshalJSON(data []byte) error {
	type plain LogRow
	aux := struct {
		*plain
		Timestamp json.RawMessage `json:"timestamp"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := timestampJSON(aux.Timestamp)
	if err != nil {
		return fmt.Errorf("log row %q: %w", r.LogID, err)
	}
	r.Timestamp = ts
	return nil
}

func timestampJSON(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		return ParseTimestamp(s)
	}
	return ParseTimestamp(string(raw))
}

// ParseTimestamp parses an RFC 3339 timestamp or epoch milliseconds.
// An empty string is the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: want RFC 3339 or epoch milliseconds", s)
	}
	return t, nil
}

// LogEntry is one rendered change-log entry.
type LogEntry struct {
	LogID           string    `json:"logId"`
	ReceptionNumber string    `json:"receptionNumber"`
	Timestamp       time.Time `json:"timestamp"`
	OrderType       string    `json:"orderType"`
	Changes         []string  `json:"changes"`
	ChangesCount    int       `json:"changesCount"`
}

// Value lowers the entry into an ir tree for hashing.
func (e LogEntry) Value() ir.Record {
	changes := make(ir.List, len(e.Changes))
	for i, c := range e.Changes {
		changes[i] = ir.String(c)
	}
	return ir.Record{
		ir.F("logId", ir.String(e.LogID)),
		ir.F("receptionNumber", ir.String(e.ReceptionNumber)),
		ir.F("timestamp", ir.Int(e.Timestamp.UnixMilli())),
		ir.F("orderType", ir.String(e.OrderType)),
		ir.F("changes", changes),
	}
}

// Hash returns the content hash of the entry. Rebuilding an unchanged row
// yields the same hash.
func (e LogEntry) Hash() string {
	return ir.MustHash(ir.DomainEntry, e.Value())
}
