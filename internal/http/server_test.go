package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/tasks"
	"github.com/fyrsmithlabs/commitd/internal/workflow"
)

// fakeProcessor records processed call ids.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	done      chan string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{done: make(chan string, 8)}
}

func (f *fakeProcessor) ProcessCall(_ context.Context, callID string) (*workflow.Result, error) {
	f.mu.Lock()
	f.processed = append(f.processed, callID)
	f.mu.Unlock()
	f.done <- callID
	return &workflow.Result{CallID: callID}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeProcessor) {
	t.Helper()
	proc := newFakeProcessor()
	catalog, err := patterns.NewDefaultCatalog(logging.Nop())
	require.NoError(t, err)
	srv, err := NewServer(proc, tasks.NewTracker(), catalog, logging.Nop(), nil)
	require.NoError(t, err)
	return srv, proc
}

func TestNewServer_RequiresProcessorAndLogger(t *testing.T) {
	_, err := NewServer(nil, nil, nil, logging.Nop(), nil)
	require.Error(t, err)

	_, err = NewServer(newFakeProcessor(), nil, nil, nil, nil)
	require.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
}

func TestHandleCallWebhook_Accepted(t *testing.T) {
	srv, proc := newTestServer(t)

	body := strings.NewReader(`{"call_id":"call-42","event":"call.completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/calls", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp CallWebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "accepted", resp.Status)
	require.Equal(t, "call-42", resp.CallID)

	select {
	case id := <-proc.done:
		require.Equal(t, "call-42", id)
	case <-time.After(5 * time.Second):
		t.Fatal("call was never processed")
	}
}

func TestHandleCallWebhook_MissingCallID(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/calls", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCallWebhook_InvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/calls", strings.NewReader(`{not json`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetTask(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/ghost", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	_, err := srv.tracker.Create("t-1", "crm")
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks/t-1", nil)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var record tasks.StatusRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	require.Equal(t, tasks.StatusPending, record.Status)
	require.Len(t, record.History, 1)
}

func TestHandlePatternStats(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patterns/stats", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PatternStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Underperforming)
}
