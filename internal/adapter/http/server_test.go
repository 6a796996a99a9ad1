package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/solar-enrichment-service/internal/adapter/http"
	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
	"github.com/couchcryptid/solar-enrichment-service/internal/pipeline"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockProcessor struct {
	received []domain.RawEvent
	out      domain.OutputEvent
	err      error
}

func (m *mockProcessor) Process(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	m.received = append(m.received, raw)
	return m.out, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockProcessor{}, observability.NewMetricsForTesting(), discardLogger())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthIncludesTimestamp(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type ingestBody struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	ProcessedData json.RawMessage `json:"processed_data"`
}

func postData(t *testing.T, srv *httpadapter.Server, body string) (*httptest.ResponseRecorder, ingestBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/data", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	var resp ingestBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestIngestSuccess(t *testing.T) {
	proc := &mockProcessor{out: domain.OutputEvent{Value: []byte(`{"device_id":"roof-1","enrichment_status":"enriched"}`)}}
	metrics := observability.NewMetricsForTesting()
	srv := httpadapter.NewServer(":0", &mockReadiness{}, proc, metrics, discardLogger())

	rec, resp := postData(t, srv, `{"device_id":"roof-1","temperature":24.5}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.Message)
	assert.JSONEq(t, `{"device_id":"roof-1","enrichment_status":"enriched"}`, string(resp.ProcessedData))

	require.Len(t, proc.received, 1)
	assert.JSONEq(t, `{"device_id":"roof-1","temperature":24.5}`, string(proc.received[0].Value))
	assert.Equal(t, "http", proc.received[0].Headers["source"])
	assert.False(t, proc.received[0].Timestamp.IsZero())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IngestRequests.WithLabelValues("200")), 0)
}

func TestIngestErrorStatus(t *testing.T) {
	validationErr := validator.New().Var(120.0, "lte=90")
	require.Error(t, validationErr)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"malformed json", fmt.Errorf("%w: unexpected end of JSON input", domain.ErrInvalidSample), http.StatusBadRequest},
		{"failed validation", fmt.Errorf("%w: %w", domain.ErrInvalidSample, validationErr), http.StatusUnprocessableEntity},
		{"invalid coordinates", fmt.Errorf("%w: latitude 95 out of range", domain.ErrInvalidCoordinates), http.StatusUnprocessableEntity},
		{"forecast unavailable", fmt.Errorf("%w: timeout", domain.ErrForecastUnavailable), http.StatusBadGateway},
		{"sink failure", fmt.Errorf("%w: broker down", pipeline.ErrSinkWrite), http.StatusInternalServerError},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockProcessor{err: tc.err}, observability.NewMetricsForTesting(), discardLogger())

			rec, resp := postData(t, srv, `{}`)
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tc.err.Error(), resp.Message)
			assert.Empty(t, resp.ProcessedData)
		})
	}
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	proc := &mockProcessor{}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, proc, observability.NewMetricsForTesting(), discardLogger())

	rec, resp := postData(t, srv, `{"place":"`+strings.Repeat("x", 2<<20)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Empty(t, proc.received)
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestIngestBodyReadErrorIsBadRequest(t *testing.T) {
	proc := &mockProcessor{}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, proc, observability.NewMetricsForTesting(), discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/data", failingBody{})
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ingestBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "connection reset")
	assert.Empty(t, proc.received)
}

func TestIngestRequiresPost(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
