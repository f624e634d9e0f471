package systems

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
)

// Retryer runs operations with capped exponential backoff. Only transient
// failures (rate limiting, 5xx) retry; validation and not-found errors
// propagate on the first attempt.
type Retryer struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	logger *logging.Logger
}

// NewRetryer creates a retryer with the standard bounds.
func NewRetryer(maxAttempts int, baseDelay, maxDelay time.Duration, multiplier float64, logger *logging.Logger) *Retryer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if multiplier < 1 {
		multiplier = 2.0
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Retryer{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Multiplier:  multiplier,
		logger:      logger,
	}
}

// Do runs op until it succeeds, fails non-transiently, exhausts attempts, or
// ctx ends. Exhaustion surfaces as a RetryableError carrying the attempt
// counters and the last failure.
func (r *Retryer) Do(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	delay := r.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		retryAfter, ok := retryHint(err)
		if !ok {
			return err
		}
		if attempt == r.MaxAttempts {
			break
		}

		wait := delay
		if retryAfter > 0 {
			wait = retryAfter
		}
		if wait > r.MaxDelay {
			wait = r.MaxDelay
		}
		r.logger.Warn("transient failure, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * r.Multiplier)
		if delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}

	return &errs.RetryableError{
		Message:    operation + " failed after retries",
		Attempt:    r.MaxAttempts,
		MaxAttempt: r.MaxAttempts,
		Err:        lastErr,
	}
}

// retryHint reports whether err is transient and any server-supplied
// retry-after delay.
func retryHint(err error) (time.Duration, bool) {
	var re *errs.RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	var ae *errs.APIError
	if errors.As(err, &ae) {
		return 0, ae.Retryable()
	}
	return 0, false
}
