package systems

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/commitd/internal/config"
	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
)

func testSystemConfig(url string) config.SystemConfig {
	return config.SystemConfig{
		BaseURL:   url,
		APIKey:    config.Secret("test-key"),
		RateLimit: 1000,
		RateBurst: 100,
	}
}

func fastRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   config.Duration(time.Millisecond),
		MaxDelay:    config.Duration(5 * time.Millisecond),
		Multiplier:  2.0,
	}
}

func TestHTTPClient_CreateTask(t *testing.T) {
	var gotAuth string
	var gotBody TaskInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/task", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(Task{ID: "crm-1", Status: "open", Description: gotBody.Description})
	}))
	defer srv.Close()

	c := NewCRMClient(testSystemConfig(srv.URL), fastRetryConfig(), logging.Nop())
	task, err := c.CreateTask(context.Background(), TaskInput{Description: "send docs", Category: "document_sending"})
	require.NoError(t, err)
	require.Equal(t, "crm-1", task.ID)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "document_sending", gotBody.Category)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Task{ID: "p-1", Status: "open"})
	}))
	defer srv.Close()

	c := NewPolicyClient(testSystemConfig(srv.URL), fastRetryConfig(), logging.Nop())
	task, err := c.GetTask(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, "p-1", task.ID)
	require.Equal(t, 3, attempts)
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"code": "invalid_field", "message": "bad due date"})
	}))
	defer srv.Close()

	c := NewCRMClient(testSystemConfig(srv.URL), fastRetryConfig(), logging.Nop())
	_, err := c.CreateTask(context.Background(), TaskInput{Description: "x"})

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.StatusCode)
	require.Equal(t, "invalid_field", apiErr.Code)
	require.Equal(t, string(patterns.SystemCRM), apiErr.System)
	require.Equal(t, 1, attempts)
}

func TestHTTPClient_RateLimitExhaustion(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := fastRetryConfig()
	cfg.MaxDelay = config.Duration(2 * time.Millisecond)
	c := NewCRMClient(testSystemConfig(srv.URL), cfg, logging.Nop())
	_, err := c.UpdateTask(context.Background(), "t-1", Fields{"status": "completed"})

	var re *errs.RetryableError
	require.ErrorAs(t, err, &re)
	require.Equal(t, 3, attempts)
}

func TestHTTPClient_DeleteTask(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewPolicyClient(testSystemConfig(srv.URL), fastRetryConfig(), logging.Nop())
	require.NoError(t, c.DeleteTask(context.Background(), "p-9"))
	require.Equal(t, "/api/v1/servicetasks/p-9", gotPath)
}

func TestCallSource_GetCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/activity/call/call-7", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"id":         "call-7",
			"lead_id":    "lead-3",
			"transcript": "Agent: I will send you the policy documents tomorrow.",
			"duration":   125,
			"direction":  "outbound",
		})
	}))
	defer srv.Close()

	cs := NewCallSource(testSystemConfig(srv.URL), fastRetryConfig(), logging.Nop())
	call, err := cs.GetCall(context.Background(), "call-7")
	require.NoError(t, err)
	require.Equal(t, "lead-3", call.LeadID)
	require.Equal(t, 125*time.Second, call.Duration)
	require.Equal(t, "outbound", call.Direction)
}

func TestMemoryClient_CRUD(t *testing.T) {
	m := NewMemoryClient(patterns.SystemCRM)
	ctx := context.Background()

	created, err := m.CreateTask(ctx, TaskInput{Description: "follow up", Category: "follow_up"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "open", created.Status)

	updated, err := m.UpdateTask(ctx, created.ID, Fields{"status": "in_progress", "description": "follow up now"})
	require.NoError(t, err)
	require.Equal(t, "in_progress", updated.Status)
	require.Equal(t, "follow up now", updated.Description)

	got, err := m.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, updated.Status, got.Status)

	require.NoError(t, m.DeleteTask(ctx, created.ID))
	_, err = m.GetTask(ctx, created.ID)
	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 404, apiErr.StatusCode)
}
