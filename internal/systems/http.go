package systems

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/commitd/internal/config"
	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
)

// httpClient is the shared transport for both backend systems: rate-limited,
// authenticated JSON over HTTP. System-specific clients differ only in
// resource paths and the system name stamped on errors.
type httpClient struct {
	system   patterns.System
	baseURL  string
	apiKey   config.Secret
	client   *http.Client
	limiter  *rate.Limiter
	retryer  *Retryer
	taskPath string
}

func newHTTPClient(system patterns.System, cfg config.SystemConfig, retryer *Retryer, taskPath string) *httpClient {
	return &httpClient{
		system:   system,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		retryer:  retryer,
		taskPath: taskPath,
	}
}

// NewCRMClient creates the client for the CRM system.
func NewCRMClient(cfg config.SystemConfig, retry config.RetryConfig, logger *logging.Logger) Client {
	r := NewRetryer(retry.MaxAttempts, time.Duration(retry.BaseDelay), time.Duration(retry.MaxDelay), retry.Multiplier, logger)
	return newHTTPClient(patterns.SystemCRM, cfg, r, "/api/v1/task")
}

// NewPolicyClient creates the client for the policy-management system.
func NewPolicyClient(cfg config.SystemConfig, retry config.RetryConfig, logger *logging.Logger) Client {
	r := NewRetryer(retry.MaxAttempts, time.Duration(retry.BaseDelay), time.Duration(retry.MaxDelay), retry.Multiplier, logger)
	return newHTTPClient(patterns.SystemPolicy, cfg, r, "/api/v1/servicetasks")
}

var _ Client = (*httpClient)(nil)

func (h *httpClient) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	var out Task
	err := h.retryer.Do(ctx, "create task", func(ctx context.Context) error {
		return h.do(ctx, http.MethodPost, h.taskPath, in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) UpdateTask(ctx context.Context, id string, fields Fields) (*Task, error) {
	var out Task
	err := h.retryer.Do(ctx, "update task", func(ctx context.Context) error {
		return h.do(ctx, http.MethodPut, h.taskPath+"/"+id, fields, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) GetTask(ctx context.Context, id string) (*Task, error) {
	var out Task
	err := h.retryer.Do(ctx, "get task", func(ctx context.Context) error {
		return h.do(ctx, http.MethodGet, h.taskPath+"/"+id, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) DeleteTask(ctx context.Context, id string) error {
	return h.retryer.Do(ctx, "delete task", func(ctx context.Context) error {
		return h.do(ctx, http.MethodDelete, h.taskPath+"/"+id, nil, nil)
	})
}

// do issues one rate-limited request. Non-2xx responses become APIError so
// the retryer can classify them.
func (h *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey.Value())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request to %s: %w", method, h.system, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return h.apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", h.system, err)
	}
	return nil
}

// apiError converts an error response into the taxonomy. A 429 with a
// Retry-After header surfaces the server's hint.
func (h *httpClient) apiError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &envelope)
	if envelope.Message == "" {
		envelope.Message = http.StatusText(resp.StatusCode)
	}

	apiErr := &errs.APIError{
		System:     string(h.system),
		StatusCode: resp.StatusCode,
		Code:       envelope.Code,
		Message:    envelope.Message,
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return &errs.RetryableError{
				Message:    apiErr.Error(),
				RetryAfter: time.Duration(secs) * time.Second,
				Err:        apiErr,
			}
		}
	}
	return apiErr
}
