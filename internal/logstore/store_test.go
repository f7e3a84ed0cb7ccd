package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordertrail/internal/changelog"
	"github.com/roach88/ordertrail/internal/format"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRow(id, reception string, ts time.Time) changelog.LogRow {
	return changelog.LogRow{
		LogID:           id,
		ReceptionNumber: reception,
		Timestamp:       ts,
		Action:          changelog.ActionUpdate,
		BeforeData:      json.RawMessage(`{"selectedYear":2024}`),
		AfterData:       json.RawMessage(`{"selectedYear":2024,"receptionNumber":"R-1"}`),
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].version, v)
}

func TestWriteAndListRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)

	for _, r := range []changelog.LogRow{
		testRow("b", "R-1", base.Add(time.Hour)),
		testRow("a", "R-1", base.Add(time.Hour)),
		testRow("c", "R-1", base),
		testRow("z", "R-2", base),
	} {
		inserted, err := s.WriteRow(ctx, r)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	rows, err := s.ListRows(ctx, "R-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c", rows[0].LogID)
	assert.Equal(t, "a", rows[1].LogID, "ties break on log id")
	assert.Equal(t, "b", rows[2].LogID)

	assert.True(t, base.Equal(rows[0].Timestamp))
	assert.JSONEq(t, `{"selectedYear":2024}`, string(rows[0].BeforeData))
	assert.Equal(t, changelog.ActionUpdate, rows[0].Action)
}

func TestListRowsKeepsGoingPastCorruptPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)

	for _, r := range []changelog.LogRow{
		testRow("a", "R-1", base),
		testRow("b", "R-1", base.Add(time.Hour)),
		testRow("c", "R-1", base.Add(2*time.Hour)),
	} {
		_, err := s.WriteRow(ctx, r)
		require.NoError(t, err)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE log_rows SET canceled_order = '{not json' WHERE log_id = 'b'`)
	require.NoError(t, err)

	rows, err := s.ListRows(ctx, "R-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[0].Unreadable)
	assert.Equal(t, "b", rows[1].LogID)
	assert.Equal(t, "R-1", rows[1].ReceptionNumber)
	require.Error(t, rows[1].Unreadable)
	assert.Contains(t, rows[1].Unreadable.Error(), "canceled order")
	assert.Nil(t, rows[2].Unreadable)
	assert.Equal(t, "c", rows[2].LogID)

	_, err = s.ReadRow(ctx, "b")
	assert.Error(t, err, "reading the corrupt row on its own still reports it")
}

func TestListRowsEmpty(t *testing.T) {
	s := createTestStore(t)
	rows, err := s.ListRows(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestWriteRowIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	row := testRow("a", "R-1", time.Now())

	inserted, err := s.WriteRow(ctx, row)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.WriteRow(ctx, row)
	require.NoError(t, err)
	assert.False(t, inserted)

	rows, err := s.ListRows(ctx, "R-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteRowValidation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRow(ctx, changelog.LogRow{ReceptionNumber: "R-1", Action: changelog.ActionCreate})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = s.WriteRow(ctx, changelog.LogRow{LogID: "x", Action: changelog.ActionCreate})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = s.WriteRow(ctx, changelog.LogRow{LogID: "x", ReceptionNumber: "R-1", Action: "REFUND"})
	assert.Error(t, err)
}

func TestCancellationPayloadRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	single := changelog.LogRow{
		LogID: "c1", ReceptionNumber: "R-1", Action: changelog.ActionCancelSingle,
		CanceledOrder: &format.CanceledOrder{
			OrderNumber: "A-1",
			Items:       []format.CanceledItem{{Name: "極", Quantity: 2}},
		},
	}
	all := changelog.LogRow{
		LogID: "c2", ReceptionNumber: "R-1", Action: changelog.ActionCancelAll,
		Timestamp:      time.UnixMilli(1714525200000).UTC(),
		CanceledOrders: []format.CanceledOrder{{OrderNumber: "A-1"}, {OrderNumber: "A-2"}},
	}
	for _, r := range []changelog.LogRow{single, all} {
		_, err := s.WriteRow(ctx, r)
		require.NoError(t, err)
	}

	got, err := s.ReadRow(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.CanceledOrder)
	assert.Equal(t, *single.CanceledOrder, *got.CanceledOrder)
	assert.True(t, got.Timestamp.IsZero())
	assert.Nil(t, got.BeforeData)

	got, err = s.ReadRow(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, all.CanceledOrders, got.CanceledOrders)
}

func TestReadRowMissing(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRow(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReceptions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, r := range []changelog.LogRow{
		testRow("1", "R-2", time.Now()),
		testRow("2", "R-1", time.Now()),
		testRow("3", "R-2", time.Now()),
	} {
		_, err := s.WriteRow(ctx, r)
		require.NoError(t, err)
	}

	got, err := s.Receptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R-1", "R-2"}, got)
}

func TestImportJSONL(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	input := strings.Join([]string{
		`{"logId":"a","receptionNumber":"R-1","timestamp":"2024-05-01T01:00:00Z","action":"CREATE","afterData":{"selectedYear":2024}}`,
		``,
		`{"receptionNumber":"R-1","timestamp":1714528800000,"action":"CANCEL_SINGLE","canceledOrder":{"orderNumber":"A-1"}}`,
		`{"logId":"a","receptionNumber":"R-1","timestamp":"2024-05-01T01:00:00Z","action":"CREATE"}`,
	}, "\n")

	res, err := s.ImportJSONL(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Read: 3, Inserted: 2, Minted: 1}, res)

	rows, err := s.ListRows(ctx, "R-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].LogID)

	minted, err := uuid.Parse(rows[1].LogID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), minted.Version())
	assert.Equal(t, "A-1", rows[1].CanceledOrder.OrderNumber)
}

func TestImportJSONLReportsLine(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ImportJSONL(context.Background(), strings.NewReader("{\"logId\":\"a\",\"receptionNumber\":\"R-1\",\"action\":\"CREATE\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
