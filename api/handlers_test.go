/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Report computation and archiving (ComputeSubscriptions)
- Input errors mapped to 400, archive errors to 500
- Router wiring (health, 404, CORS)
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/generic/store"
	"github.com/warp/subscription-engine/store/sqlite"
)

const computeBody = `{
	"users": [
		{"number": "1", "name": "Jane"},
		{"number": 2, "name": "John"}
	],
	"partners": [
		{"name": "X", "data": {
			"grants": [
				{"number": "1", "date": "2015-01-01T00:00:00Z", "period": 3},
				{"number": "99", "date": "2015-01-01T00:00:00Z", "period": 1},
				{"number": 2, "date": "2015-01-01T00:00:00Z"}
			],
			"revocations": []
		}},
		{"name": "Y", "data": {
			"grants": [{"number": "1", "date": "2015-04-15T00:00:00Z", "period": 1}]
		}}
	]
}`

var fixedNow = time.Date(2015, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, st generic.ReportStore) (*Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewHandler(st, zap.New(core), WithClock(func() time.Time { return fixedNow })), logs
}

func post(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestComputeSubscriptions_Success(t *testing.T) {
	// GIVEN: a sqlite archive and a body where Y's offer is blocked by X
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	h, logs := newTestHandler(t, st)
	router := NewRouter(h, nil)

	// WHEN: posting the computation
	rec := post(t, router, computeBody)

	// THEN: the report is returned and archived
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ComputeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "2015-06-01T12:00:00Z", resp.CreatedAt)
	assert.Equal(t, []string{"X", "Y"}, resp.Partners)
	assert.Equal(t, map[string]generic.Tally{"Jane": {"X": 90}}, resp.Subscriptions)
	assert.Equal(t, []LoadStatsDTO{
		{Partner: "X", Granted: 1, Skipped: 1, Failed: 1},
		{Partner: "Y", Granted: 1},
	}, resp.LoadStats)

	run, err := st.Load(context.Background(), generic.RunID(resp.RunID))
	require.NoError(t, err)
	assert.Equal(t, resp.Subscriptions, run.Report.Subscriptions)
	assert.Equal(t, []generic.PartnerName{"X", "Y"}, run.Partners)

	// ingestion and resolution warnings went through the handler's logger
	assert.Equal(t, 1, logs.FilterMessage("grant without any period").Len())
	assert.Equal(t, 1, logs.FilterMessage("grant failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("offer blocked by unrevoked offer from another partner").Len())
	assert.Equal(t, 1, logs.FilterMessage("report computed").Len())
}

func TestComputeSubscriptions_EmptyInput(t *testing.T) {
	h, _ := newTestHandler(t, store.NewMemory())

	rec := post(t, NewRouter(h, nil), `{"users": [], "partners": []}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{}`, string(mustField(t, rec.Body.Bytes(), "subscriptions")))
}

func TestComputeSubscriptions_WrongTypedRecordIsIsolated(t *testing.T) {
	// GIVEN: a partner whose second grant has a string period
	h, logs := newTestHandler(t, store.NewMemory())
	body := `{
		"users": [{"number": "1", "name": "Jane"}],
		"partners": [{"name": "X", "data": {"grants": [
			{"number": "1", "date": "2015-01-01T00:00:00Z", "period": 3},
			{"number": "1", "date": "2015-06-01T00:00:00Z", "period": "abc"}
		]}}]
	}`

	// WHEN: posting it
	rec := post(t, NewRouter(h, nil), body)

	// THEN: the request succeeds and only the bad record is dropped
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp ComputeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]generic.Tally{"Jane": {"X": 90}}, resp.Subscriptions)
	assert.Equal(t, []LoadStatsDTO{{Partner: "X", Granted: 1, Failed: 1}}, resp.LoadStats)
	assert.Equal(t, 1, logs.FilterMessage("grant failed").Len())
}

func TestComputeSubscriptions_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"users": [`},
		{"account without name", `{"users": [{"number": "1"}], "partners": []}`},
		{"partner without name", `{"users": [], "partners": [{"data": {}}]}`},
		{"duplicate partner", `{"users": [], "partners": [{"name": "X"}, {"name": " X "}]}`},
		{"boolean account number", `{"users": [{"number": true, "name": "Jane"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			h, _ := newTestHandler(t, mem)

			rec := post(t, NewRouter(h, nil), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.Details)
			assert.Empty(t, mem.Runs(), "nothing archived")
		})
	}
}

type failingStore struct{}

func (failingStore) Save(context.Context, generic.Run) error {
	return errors.New("disk full")
}

func (failingStore) Load(context.Context, generic.RunID) (generic.Run, error) {
	return generic.Run{}, generic.ErrRunNotFound
}

func TestComputeSubscriptions_ArchiveFailure(t *testing.T) {
	h, logs := newTestHandler(t, failingStore{})

	rec := post(t, NewRouter(h, nil), computeBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
	assert.Equal(t, 1, logs.FilterMessage("archive report").Len())
}

func TestComputeSubscriptions_WorkersMatchSequential(t *testing.T) {
	seq, _ := newTestHandler(t, store.NewMemory())
	par, _ := newTestHandler(t, store.NewMemory())
	WithWorkers(4)(par)

	a := post(t, NewRouter(seq, nil), computeBody)
	b := post(t, NewRouter(par, nil), computeBody)

	require.Equal(t, http.StatusCreated, b.Code)
	assert.JSONEq(t,
		string(mustField(t, a.Body.Bytes(), "subscriptions")),
		string(mustField(t, b.Body.Bytes(), "subscriptions")))
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	h, logs := newTestHandler(t, store.NewMemory())
	router := NewRouter(h, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	requests := logs.FilterMessage("request").All()
	require.Len(t, requests, 3)
	assert.Equal(t, "/api/health", requests[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusOK, requests[0].ContextMap()["status"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t, store.NewMemory())
	router := NewRouter(h, []string{"https://reports.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/subscriptions", nil)
	req.Header.Set("Origin", "https://reports.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://reports.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func mustField(t *testing.T, body []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	raw, ok := m[field]
	require.True(t, ok, "field %s missing", field)
	return raw
}
