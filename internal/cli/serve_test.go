package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordertrail/internal/api"
	"github.com/roach88/ordertrail/internal/config"
)

func TestServeHandler(t *testing.T) {
	dbPath, mastersDir := fixture(t, testRows())
	cfg := config.Default()
	cfg.Store.DBPath = dbPath
	cfg.Masters.Dir = mastersDir

	handler, cl, err := newServeHandler(context.Background(), cfg, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = cl.Close() })
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/receptions/R-100/changelog", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ChangeLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "log-2", resp.Entries[0].LogID)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/receptions", nil))
	assert.JSONEq(t, `{"receptions":["R-100"]}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `ordertrail_rows_built_total{action="UPDATE"} 1`)
}

func TestServeHandlerBadStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.DBPath = ""
	_, cl, err := newServeHandler(context.Background(), cfg, slog.New(slog.DiscardHandler))
	_ = cl.Close()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
