package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/shelfwatch/config"
	"github.com/pevans/shelfwatch/docsource"
	"github.com/pevans/shelfwatch/extract"
	"github.com/pevans/shelfwatch/product"
	"github.com/pevans/shelfwatch/tracking"
	"github.com/pevans/shelfwatch/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router  *gin.Engine
	service *watch.Service
	pages   string
}

// Test helper: create a router over a SQLite store and saved pages
func setupTestRouter(t *testing.T) *testEnv {
	tempDir := t.TempDir()
	store, err := tracking.NewStore(filepath.Join(tempDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pages := filepath.Join(tempDir, "pages")
	require.NoError(t, os.Mkdir(pages, 0o755))

	cfg := config.Default()
	cfg.Storage.Type = "postgres"
	cfg.Storage.DSN = "postgres://shelf:secret@db/shelfwatch"

	reg := prometheus.NewRegistry()
	sched := watch.NewScheduler(store, docsource.NewDirProvider(pages), extract.New(nil), nil,
		watch.WithMetrics(watch.NewMetrics(reg)))
	service := watch.NewService(store, sched)

	return &testEnv{
		router:  NewServer(service, WithGatherer(reg), WithConfig(cfg)).SetupRouter(),
		service: service,
		pages:   pages,
	}
}

func (e *testEnv) writePage(t *testing.T, id, price string) {
	html := `<html><body><span id="productTitle">Kettle</span>` +
		`<span class="a-price"><span class="a-offscreen">$` + price + `</span></span></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(e.pages, id+".html"), []byte(html), 0o644))
}

func (e *testEnv) track(t *testing.T, id, price string) {
	rec := product.Empty("https://www.amazon.com/dp/"+id, fixedNow)
	rec.Identifier = product.Ptr(id)
	rec.Title = product.Ptr("Kettle")
	rec.Price = product.Ptr(decimal.RequireFromString(price))
	_, err := e.service.Track(t.Context(), rec)
	require.NoError(t, err)
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

// TestHandleListTracked_Empty verifies an empty watch-list
func TestHandleListTracked_Empty(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/v1/tracked", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp ListTrackedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Items)
}

// TestHandleListTracked verifies summaries of tracked items
func TestHandleListTracked(t *testing.T) {
	env := setupTestRouter(t)
	env.track(t, "B0000000A1", "29.99")

	w := env.do(http.MethodGet, "/api/v1/tracked", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp ListTrackedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "B0000000A1", resp.Items[0].Identifier)
	assert.Equal(t, "Kettle", resp.Items[0].Title)
	assert.Equal(t, "29.99", resp.Items[0].CurrentPrice.String())
	assert.Equal(t, 1, resp.Items[0].Samples)
}

// TestHandleGetTracked verifies lookup by identifier
func TestHandleGetTracked(t *testing.T) {
	env := setupTestRouter(t)
	env.track(t, "B0000000A1", "29.99")

	tests := []struct {
		name string
		path string
		code int
	}{
		{"tracked", "/api/v1/tracked/B0000000A1", http.StatusOK},
		{"not tracked", "/api/v1/tracked/B0000000Z9", http.StatusNotFound},
		{"malformed", "/api/v1/tracked/kettle", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, tt.path, "")
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

// TestHandleGetHistory verifies the price history is returned oldest first
func TestHandleGetHistory(t *testing.T) {
	env := setupTestRouter(t)
	env.track(t, "B0000000A1", "29.99")
	env.writePage(t, "B0000000A1", "24.99")

	w := env.do(http.MethodPost, "/api/v1/tracked/B0000000A1/check", "")
	require.Equal(t, http.StatusOK, w.Code)
	var check CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
	assert.True(t, check.Changed)
	require.NotNil(t, check.Event)
	assert.Equal(t, "24.99", check.Event.NewPrice.String())

	w = env.do(http.MethodGet, "/api/v1/tracked/B0000000A1/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.PriceHistory, 2)
	assert.Equal(t, "29.99", resp.PriceHistory[0].Price.String())
	assert.Equal(t, "24.99", resp.PriceHistory[1].Price.String())
}

// TestHandleCheck_Unavailable verifies a failed fetch maps to 502
func TestHandleCheck_Unavailable(t *testing.T) {
	env := setupTestRouter(t)
	env.track(t, "B0000000A1", "29.99")

	w := env.do(http.MethodPost, "/api/v1/tracked/B0000000A1/check", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "unavailable", errorCode(t, w))
}

// TestHandleTrack verifies tracking by identifier through the provider
func TestHandleTrack(t *testing.T) {
	env := setupTestRouter(t)
	env.writePage(t, "B0000000A1", "29.99")

	w := env.do(http.MethodPost, "/api/v1/tracked", `{"identifier":"B0000000A1"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var item tracking.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "B0000000A1", item.Identifier)
	assert.Equal(t, "29.99", item.CurrentPrice().String())
	assert.True(t, env.service.Scheduler().Scheduled("B0000000A1"))
}

// TestHandleTrack_AlreadyTracked verifies tracking an existing item returns
// 200 and leaves it unchanged
func TestHandleTrack_AlreadyTracked(t *testing.T) {
	env := setupTestRouter(t)
	env.writePage(t, "B0000000A1", "29.99")

	w := env.do(http.MethodPost, "/api/v1/tracked", `{"identifier":"B0000000A1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	env.writePage(t, "B0000000A1", "19.99")
	w = env.do(http.MethodPost, "/api/v1/tracked", `{"identifier":"B0000000A1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var item tracking.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "29.99", item.CurrentPrice().String())
	assert.Len(t, item.PriceHistory, 1)
}

// TestHandleTrack_Validation verifies bad requests are rejected
func TestHandleTrack_Validation(t *testing.T) {
	env := setupTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"malformed identifier", `{"identifier":"kettle"}`},
		{"not json", `kettle`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/tracked", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", errorCode(t, w))
		})
	}
}

// TestHandleUntrack verifies deletion and the 404 on a second delete
func TestHandleUntrack(t *testing.T) {
	env := setupTestRouter(t)
	env.track(t, "B0000000A1", "29.99")

	w := env.do(http.MethodDelete, "/api/v1/tracked/B0000000A1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, env.service.Scheduler().Scheduled("B0000000A1"))

	w = env.do(http.MethodDelete, "/api/v1/tracked/B0000000A1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))
}

// TestMetricsEndpoint verifies scheduler metrics are exposed
func TestMetricsEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	env.track(t, "B0000000A1", "29.99")

	w := env.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shelfwatch_scheduled_items 1")
}

// TestHandleGetConfig verifies the effective configuration is served without
// credentials
func TestHandleGetConfig(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/v1/config", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "postgres://shelf:***@db/shelfwatch")
	assert.NotContains(t, w.Body.String(), "secret")
}
