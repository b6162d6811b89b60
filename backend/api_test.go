package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguard/mediguard/backend/alerting"
	"github.com/mediguard/mediguard/backend/simulator"
	"github.com/mediguard/mediguard/backend/store"
)

var apiRef = time.Date(2025, 11, 25, 0, 0, 0, 0, time.UTC)

type stubScorer float64

func (s stubScorer) Score(*time.Time, string) float64 { return float64(s) }

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) {}

func newTestAPI(t *testing.T, score float64) (*API, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	eval := alerting.NewEvaluator(mem, nil, nil)
	gen := simulator.NewGenerator(simulator.GeneratorConfig{SensorChannels: 3}, stubScorer(score), apiRef)
	sup := simulator.NewSupervisor(gen, noopPublisher{}, eval, nil)
	t.Cleanup(sup.StopAll)
	return NewAPI(nil, stubScorer(score), sup, eval, mem, nil, apiRef), mem
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t, 0.1)
	rec := doJSON(t, api.handleHealth, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPredictExpiringSoonRaisesAlert(t *testing.T) {
	api, mem := newTestAPI(t, 0.1)

	expiry := apiRef.AddDate(0, 0, 30).Format("2006-01-02")
	body := fmt.Sprintf(`{"manufacturer":"PharmaCorp","expiry_date":%q,"batch":"B001"}`, expiry)
	rec := doJSON(t, api.handlePredict, http.MethodPost, "/predict", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PharmaCorp", resp.Manufacturer)
	require.NotNil(t, resp.DaysToExpiry)
	assert.Equal(t, 30, *resp.DaysToExpiry)
	assert.False(t, resp.PredictedFake)

	// Near-expiry fires the critical rule regardless of score.
	require.Equal(t, 1, mem.Len())
	alerts, err := mem.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, store.LevelCritical, alerts[0].Level)
}

func TestPredictUnparsableExpiryIsUnknown(t *testing.T) {
	api, mem := newTestAPI(t, 0.1)

	rec := doJSON(t, api.handlePredict, http.MethodPost, "/predict", `{"manufacturer":"PharmaCorp","expiry_date":"soon"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.DaysToExpiry)
	assert.Equal(t, 0, mem.Len())
}

func TestPredictHighScoreIsFlagged(t *testing.T) {
	api, mem := newTestAPI(t, 0.9)

	rec := doJSON(t, api.handlePredict, http.MethodPost, "/predict", `{"manufacturer":"NoSuchCorp"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.PredictedFake)
	assert.Equal(t, 0.9, resp.FakeScore)
	assert.Equal(t, 1, mem.Len())
}

func TestPredictRejectsBadRequests(t *testing.T) {
	api, _ := newTestAPI(t, 0.1)

	rec := doJSON(t, api.handlePredict, http.MethodPost, "/predict", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, api.handlePredict, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartStreamValidatesRequestBounds(t *testing.T) {
	api, _ := newTestAPI(t, 0.1)

	rec := doJSON(t, api.handleStreams, http.MethodPost, "/streams", `{"seconds":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "seconds must be between")

	rec = doJSON(t, api.handleStreams, http.MethodPost, "/streams", `{"seconds":30,"interval":0.05}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "interval must be between")
}

func TestStreamLifecycleOverHTTP(t *testing.T) {
	api, _ := newTestAPI(t, 0.1)

	rec := doJSON(t, api.handleStreams, http.MethodPost, "/streams", `{"seconds":600,"interval":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var started map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	id, _ := started["stream_id"].(string)
	require.NotEmpty(t, id)

	rec = doJSON(t, api.handleStreams, http.MethodGet, "/streams", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = doJSON(t, api.handleStreamByID, http.MethodDelete, "/streams/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// A second stop is a 404: the stream is already gone.
	rec = doJSON(t, api.handleStreamByID, http.MethodDelete, "/streams/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopUnknownStream(t *testing.T) {
	api, _ := newTestAPI(t, 0.1)
	rec := doJSON(t, api.handleStreamByID, http.MethodDelete, "/streams/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertsEndpointHonorsLimit(t *testing.T) {
	api, mem := newTestAPI(t, 0.1)
	for i := 0; i < 5; i++ {
		require.NoError(t, mem.Append(context.Background(), &store.Alert{
			ID:        fmt.Sprintf("a-%d", i),
			Timestamp: time.Now().UTC(),
			Level:     store.LevelWarning,
		}))
	}

	rec := doJSON(t, api.handleAlerts, http.MethodGet, "/alerts?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []*store.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 2)
	assert.Equal(t, "a-4", alerts[0].ID)
}

func TestAlertsEndpointEmptyIsJSONArray(t *testing.T) {
	api, _ := newTestAPI(t, 0.1)
	rec := doJSON(t, api.handleAlerts, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHighRiskProjection(t *testing.T) {
	api, mem := newTestAPI(t, 0.1)
	require.NoError(t, mem.Append(context.Background(), &store.Alert{
		ID:           "a-1",
		Timestamp:    time.Now().UTC(),
		Level:        store.LevelCritical,
		Manufacturer: "PharmaCorp",
		Message:      "CRITICAL: ML anomaly (score=0.900) | supplier=PharmaCorp",
		Event:        simulator.TestEvent{FakeScore: 0.9, Batch: "B001"},
	}))

	rec := doJSON(t, api.handleHighRisk, http.MethodGet, "/highrisk", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []highRiskEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "PharmaCorp", entries[0].Name)
	assert.Equal(t, "B001", entries[0].Batch)
	assert.Equal(t, 10, entries[0].Quality)
	assert.Equal(t, "high", entries[0].Risk)
}
