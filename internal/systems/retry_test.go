package systems

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
)

func fastRetryer(maxAttempts int) *Retryer {
	return NewRetryer(maxAttempts, time.Millisecond, 10*time.Millisecond, 2.0, logging.Nop())
}

func TestRetryer_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastRetryer(3).Do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryer_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := fastRetryer(3).Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return &errs.APIError{System: "crm", StatusCode: 503, Message: "unavailable"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryer_DoesNotRetryValidationErrors(t *testing.T) {
	calls := 0
	wantErr := errs.NewValidation("bad input")
	err := fastRetryer(3).Do(context.Background(), "op", func(context.Context) error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls)
}

func TestRetryer_DoesNotRetryNotFound(t *testing.T) {
	calls := 0
	err := fastRetryer(3).Do(context.Background(), "op", func(context.Context) error {
		calls++
		return &errs.APIError{System: "crm", StatusCode: 404, Message: "missing"}
	})
	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 1, calls)
}

func TestRetryer_ExhaustionWrapsLastError(t *testing.T) {
	calls := 0
	err := fastRetryer(3).Do(context.Background(), "create task", func(context.Context) error {
		calls++
		return &errs.APIError{System: "policy", StatusCode: 429, Message: "slow down"}
	})
	require.Equal(t, 3, calls)

	var re *errs.RetryableError
	require.ErrorAs(t, err, &re)
	require.Equal(t, 3, re.Attempt)
	require.Equal(t, 3, re.MaxAttempt)

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 429, apiErr.StatusCode)
}

func TestRetryer_HonorsRetryAfterHint(t *testing.T) {
	calls := 0
	start := time.Now()
	err := fastRetryer(2).Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls == 1 {
			return &errs.RetryableError{Message: "rate limited", RetryAfter: 20 * time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	// The hint exceeds MaxDelay (10ms), so the wait is capped there.
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestRetryer_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetryer(3, time.Minute, time.Minute, 2.0, logging.Nop())

	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "op", func(context.Context) error {
			return &errs.APIError{System: "crm", StatusCode: 500, Message: "boom"}
		})
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retryer did not observe context cancellation")
	}
}

func TestRetryHint_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &errs.APIError{StatusCode: 429}, true},
		{"server error", &errs.APIError{StatusCode: 502}, true},
		{"not found", &errs.APIError{StatusCode: 404}, false},
		{"bad request", &errs.APIError{StatusCode: 400}, false},
		{"retryable wrapper", &errs.RetryableError{Message: "x"}, true},
		{"plain error", errors.New("boom"), false},
		{"validation", errs.NewValidation("bad"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := retryHint(tt.err)
			require.Equal(t, tt.want, got)
		})
	}
}
