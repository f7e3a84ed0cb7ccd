package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordertrail/internal/changelog"
	"github.com/roach88/ordertrail/internal/logstore"
)

const testMasterYAML = `
year: 2024
items:
  kiwami:
    name: 極
    price: 3200
    toppings:
      - id: t1
        name: まぐろ
      - id: t2
        name: うに
`

func doc(quantity int, toppings ...string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"customer": map[string]any{"contactName": "山田"},
		"orders": []any{map[string]any{
			"internalId":       "o-1",
			"orderNumber":      "A-1",
			"deliveryDateTime": "2024-05-01 11:30",
			"orderItems": []any{map[string]any{
				"productKey":            "kiwami",
				"quantity":              quantity,
				"toppingChangePatterns": []any{map[string]any{"selectedToppings": toppings}},
			}},
		}},
		"receptionNumber": "R-100",
		"selectedYear":    2024,
	})
	return b
}

func testRows() []changelog.LogRow {
	return []changelog.LogRow{
		{
			LogID: "log-1", ReceptionNumber: "R-100", Action: changelog.ActionCreate,
			Timestamp: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC),
			AfterData: doc(2, "t1"),
		},
		{
			LogID: "log-2", ReceptionNumber: "R-100", Action: changelog.ActionUpdate,
			Timestamp:  time.Date(2024, 5, 2, 1, 0, 0, 0, time.UTC),
			BeforeData: doc(2, "t1"), AfterData: doc(5, "t1", "t2"),
		},
	}
}

// fixture writes a database and a masters directory under t.TempDir.
func fixture(t *testing.T, rows []changelog.LogRow) (dbPath, mastersDir string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "ordertrail.db")
	mastersDir = filepath.Join(dir, "masters")
	require.NoError(t, os.Mkdir(mastersDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mastersDir, "2024.yaml"), []byte(testMasterYAML), 0o644))

	st, err := logstore.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	for _, r := range rows {
		_, err := st.WriteRow(context.Background(), r)
		require.NoError(t, err)
	}
	return dbPath, mastersDir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ordertrail.db")

	var lines []string
	for _, r := range testRows() {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		lines = append(lines, string(b))
	}
	lines = append(lines, `{"receptionNumber":"R-200","action":"CANCEL_ALL","timestamp":1714525200000,"canceledOrders":[]}`)
	input := filepath.Join(dir, "rows.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	out, _, err := execute(t, "import", "--db", dbPath, input)
	require.NoError(t, err)
	assert.Contains(t, out, "Read 3 rows, inserted 3 (1 ids minted, 0 already present).")

	out, _, err = execute(t, "--format", "json", "import", "--db", dbPath, input)
	require.NoError(t, err)
	var resp struct {
		Status string                `json:"status"`
		Data   logstore.ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, logstore.ImportResult{Read: 3, Inserted: 1, Minted: 1}, resp.Data, "only the id-less row is inserted again")
}

func TestImportCommandBadLine(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "rows.jsonl")
	require.NoError(t, os.WriteFile(input, []byte("{not json}\n"), 0o644))

	_, _, err := execute(t, "import", "--db", filepath.Join(dir, "x.db"), input)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestImportCommandMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "import", "--db", filepath.Join(dir, "x.db"), filepath.Join(dir, "missing.jsonl"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestChangeLogCommandText(t *testing.T) {
	dbPath, mastersDir := fixture(t, testRows())

	out, _, err := execute(t, "changelog", "--db", dbPath, "--masters", mastersDir, "R-100")
	require.NoError(t, err)

	assert.Contains(t, out, "2024-05-02 10:00:00  注文変更  (log-2, 2 changes)")
	assert.Contains(t, out, "  - 【A-1】の「極」の数量が 2 から 5 に変更されました。")
	assert.Contains(t, out, "  - 【A-1】でネタ変更が行われました: 「極: うに 追加」")
	assert.Less(t, strings.Index(out, "log-2"), strings.Index(out, "log-1"), "newest entry first")
}

func TestChangeLogCommandJSON(t *testing.T) {
	dbPath, mastersDir := fixture(t, testRows())

	out, _, err := execute(t, "--format", "json", "changelog", "--db", dbPath, "--masters", mastersDir, "R-100")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			ReceptionNumber string               `json:"receptionNumber"`
			Entries         []changelog.LogEntry `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "R-100", resp.Data.ReceptionNumber)
	require.Len(t, resp.Data.Entries, 2)
	assert.Equal(t, "log-2", resp.Data.Entries[0].LogID)
	assert.Equal(t, 2, resp.Data.Entries[0].ChangesCount)
}

func TestChangeLogCommandSkippedRowExitsOne(t *testing.T) {
	rows := append(testRows(), changelog.LogRow{
		LogID: "log-3", ReceptionNumber: "R-100", Action: changelog.ActionUpdate,
		Timestamp:  time.Date(2024, 5, 3, 1, 0, 0, 0, time.UTC),
		BeforeData: json.RawMessage(`{"selectedYear": 2019}`),
		AfterData:  json.RawMessage(`{"selectedYear": 2019}`),
	})
	dbPath, mastersDir := fixture(t, rows)

	out, _, err := execute(t, "changelog", "--db", dbPath, "--masters", mastersDir, "R-100")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 log rows skipped")
	assert.NotContains(t, out, "log-3")
	assert.Contains(t, out, "log-2")
}

func TestChangeLogCommandUnknownReception(t *testing.T) {
	dbPath, mastersDir := fixture(t, testRows())

	out, _, err := execute(t, "changelog", "--db", dbPath, "--masters", mastersDir, "R-999")
	require.NoError(t, err)
	assert.Equal(t, "No log rows for reception R-999.\n", out)
}

func TestChangeLogCommandNoMasters(t *testing.T) {
	dbPath, _ := fixture(t, testRows())

	_, _, err := execute(t, "changelog", "--db", dbPath, "R-100")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no master source")
}

func TestMasterLoadThenChangeLogFromPebble(t *testing.T) {
	dbPath, mastersDir := fixture(t, testRows())
	pebbleDir := filepath.Join(t.TempDir(), "masters.pebble")

	out, _, err := execute(t, "master", "load", "--pebble", pebbleDir, filepath.Join(mastersDir, "2024.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Stored settings_2024\n", out)

	out, _, err = execute(t, "changelog", "--db", dbPath, "--pebble", pebbleDir, "R-100")
	require.NoError(t, err)
	assert.Contains(t, out, "【A-1】の「極」の数量が 2 から 5 に変更されました。")
}

func TestMasterLoadBadger(t *testing.T) {
	_, mastersDir := fixture(t, nil)
	badgerDir := filepath.Join(t.TempDir(), "masters.badger")

	out, _, err := execute(t, "--format", "json", "master", "load", "--badger", badgerDir, filepath.Join(mastersDir, "2024.yaml"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"years":[2024]}}`, out)
}

func TestMasterLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "2024.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("year: 2024\nitems:\n  kiwami:\n    price: -1\n"), 0o644))

	_, _, err := execute(t, "master", "load", "--pebble", filepath.Join(dir, "p"), bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMasterLoadRequiresStore(t *testing.T) {
	_, _, err := execute(t, "master", "load", "x.yaml")
	require.Error(t, err)
}

func TestMasterYears(t *testing.T) {
	_, mastersDir := fixture(t, nil)
	out, _, err := execute(t, "master", "years", "--masters", mastersDir)
	require.NoError(t, err)
	assert.Equal(t, "2024\n", out)
}
