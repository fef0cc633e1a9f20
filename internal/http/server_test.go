package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flow/internal/cache"
	"flow/internal/core"
	"flow/internal/log"
	"flow/internal/middleware/ratelimit"
	"flow/internal/services"
	"flow/internal/store/file"
)

const rentJSON = `{"name":"Rent","amount":-1200,"baseDate":"2024-01-01","recurrence":{"type":"RECURRING","interval":1,"unit":"MONTH"}}`

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard, Component: log.ComponentHTTP})
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	st, err := file.Open(filepath.Join(t.TempDir(), "transactions.json"))
	require.NoError(t, err)

	forecast := services.NewForecastService(st, cache.NewLRUCache[[]core.CashflowPoint](8, time.Minute), 12)
	txs := services.NewTransactionService(st, nil, forecast)

	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(":0", txs, forecast, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

type wirePoint struct {
	Date   string      `json:"date"`
	Amount json.Number `json:"amount"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestReadyReportsFailure(t *testing.T) {
	srv := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("database is locked") }})

	rec := do(t, srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"not ready"}`, rec.Body.String())
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/transactions", rentJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/transactions/"+id, rec.Header().Get("Location"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = do(t, srv, http.MethodGet, "/api/transactions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[core.Transaction](t, rec)
	assert.Equal(t, "Rent", got.Name)
	assert.Equal(t, "2024-01-01", got.BaseDate.String())

	updated := strings.Replace(rentJSON, `-1200`, `-1250.50`, 1)
	rec = do(t, srv, http.MethodPut, "/api/transactions/"+id, updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "-1250.5", decode[core.Transaction](t, rec).Amount.String())

	rec = do(t, srv, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]core.Transaction](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = do(t, srv, http.MethodDelete, "/api/transactions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/transactions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"transaction not found"}`, rec.Body.String())
}

func TestListEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/transactions", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{"name":`, want: http.StatusBadRequest},
		{name: "empty body", body: ` `, want: http.StatusBadRequest},
		{name: "zero amount", body: `{"name":"Nothing","amount":0,"baseDate":"2024-01-01","recurrence":{"type":"ONE_TIME"}}`, want: http.StatusUnprocessableEntity},
		{name: "blank name", body: `{"name":"  ","amount":5,"baseDate":"2024-01-01","recurrence":{"type":"ONE_TIME"}}`, want: http.StatusUnprocessableEntity},
		{name: "bad date", body: `{"name":"Gym","amount":-30,"baseDate":"2024-13-40","recurrence":{"type":"ONE_TIME"}}`, want: http.StatusUnprocessableEntity},
		{name: "zero interval", body: `{"name":"Gym","amount":-30,"baseDate":"2024-01-01","recurrence":{"type":"RECURRING","interval":0,"unit":"WEEK"}}`, want: http.StatusUnprocessableEntity},
		{name: "unknown unit", body: `{"name":"Gym","amount":-30,"baseDate":"2024-01-01","recurrence":{"type":"RECURRING","interval":1,"unit":"FORTNIGHT"}}`, want: http.StatusUnprocessableEntity},
		{name: "unknown type", body: `{"name":"Gym","amount":-30,"baseDate":"2024-01-01","recurrence":{"type":"SOMETIMES"}}`, want: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{})

			rec := do(t, srv, http.MethodPost, "/api/transactions", tt.body)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateAcceptsLegacyInterval(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Netflix","amount":"-12.99","baseDate":"2024-01-15T00:00:00.000Z","interval":"MONTHLY"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[core.Transaction](t, rec)
	assert.Equal(t, core.Every(1, core.UnitMonth), got.Recurrence)
	assert.Equal(t, "2024-01-15", got.BaseDate.String())
}

func TestUpdateUnknownTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPut, "/api/transactions/missing", rentJSON)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUnknownTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodDelete, "/api/transactions/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCashflow(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", rentJSON).Code)

	rec := do(t, srv, http.MethodGet, "/api/cashflow?end=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	points := decode[[]wirePoint](t, rec)
	require.Len(t, points, 61)
	assert.Equal(t, wirePoint{Date: "2024-01-01", Amount: "-1200"}, points[0])
	assert.Equal(t, wirePoint{Date: "2024-02-01", Amount: "-2400"}, points[31])
	assert.Equal(t, wirePoint{Date: "2024-03-01", Amount: "-3600"}, points[60])

	rec = do(t, srv, http.MethodGet, "/api/cashflow?from=2024-02-01&end=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	points = decode[[]wirePoint](t, rec)
	require.Len(t, points, 30)
	assert.Equal(t, wirePoint{Date: "2024-02-01", Amount: "-2400"}, points[0])
}

func TestCashflowReflectsChanges(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", rentJSON).Code)

	before := decode[[]wirePoint](t, do(t, srv, http.MethodGet, "/api/cashflow?end=2024-01-10", ""))
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions",
		`{"name":"Salary","amount":3000,"baseDate":"2024-01-05","recurrence":{"type":"ONE_TIME"}}`).Code)
	after := decode[[]wirePoint](t, do(t, srv, http.MethodGet, "/api/cashflow?end=2024-01-10", ""))

	assert.Equal(t, json.Number("-1200"), before[9].Amount)
	assert.Equal(t, json.Number("1800"), after[9].Amount)
}

func TestCashflowEmptyAndInvalid(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/cashflow?end=2024-03-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/cashflow?end=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid end: \"tomorrow\""}`, rec.Body.String())
}

func TestEndDateIsBounded(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", rentJSON).Code)

	tests := []struct {
		name string
		path string
	}{
		{name: "cashflow", path: "/api/cashflow?end=9999-12-31"},
		{name: "cashflow with from", path: "/api/cashflow?from=2024-01-01&end=9999-12-31"},
		{name: "summary", path: "/api/summary?end=9999-12-31"},
		{name: "one of several horizons", path: "/api/cashflow/horizons?end=2024-03-01&end=9999-12-31"},
		{name: "comma separated horizons", path: "/api/cashflow/horizons?end=2024-03-01,3000-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "after the latest allowed date")
		})
	}

	within := time.Now().AddDate(0, 6, 0).Format("2006-01-02")
	rec := do(t, srv, http.MethodGet, "/api/cashflow?end="+within, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHorizons(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", rentJSON).Code)

	rec := do(t, srv, http.MethodGet, "/api/cashflow/horizons?end=2024-01-31&end=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	series := decode[[]struct {
		End    string      `json:"end"`
		Points []wirePoint `json:"points"`
	}](t, rec)
	require.Len(t, series, 2)
	assert.Equal(t, "2024-01-31", series[0].End)
	assert.Len(t, series[0].Points, 31)
	assert.Equal(t, "2024-03-01", series[1].End)
	assert.Len(t, series[1].Points, 61)

	rec = do(t, srv, http.MethodGet, "/api/cashflow/horizons", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", rentJSON).Code)

	rec := do(t, srv, http.MethodGet, "/api/summary?end=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, json.Number("-1200"), got.Total)
	assert.Equal(t, "2024-01-01", got.Start)
	assert.Equal(t, "2024-03-01", got.End)
	assert.Equal(t, 61, got.Days)
	assert.Equal(t, json.Number("-3600"), got.Final)
	assert.Equal(t, json.Number("-3600"), got.Min)
	assert.Equal(t, "2024-03-01", got.MinDate)
	assert.Equal(t, json.Number("-1200"), got.Max)
	assert.Equal(t, "2024-01-01", got.MaxDate)
	assert.NotEmpty(t, got.Today)
}

func TestSummaryEmptyOmitsDates(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/summary?end=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.NotContains(t, body, "start")
	assert.NotContains(t, body, "minDate")
	assert.Equal(t, float64(0), body["count"])
}

func TestMiddlewareHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/transactions", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))
}

func TestRateLimitOnlyMutations(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: ratelimit.Config{
		RequestsPerMinute: 2,
		Methods:           []string{http.MethodPost},
	}})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", rentJSON).Code)
	}

	rec := do(t, srv, http.MethodPost, "/api/transactions", rentJSON)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded, try again later"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/transactions", "").Code)
}

type failingTransactions struct{ TransactionService }

func (failingTransactions) List(context.Context) ([]core.Transaction, error) {
	return nil, errors.New("disk I/O error at /var/lib/flow")
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	srv := NewServer(":0", failingTransactions{}, nil, Options{Logger: quietLogger()})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := do(t, srv, http.MethodGet, "/api/transactions", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t, Options{})

	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, srv.Shutdown(context.Background()))
}
