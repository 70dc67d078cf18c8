package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/swarmpace/internal/pacer"
)

// HTTPError represents an HTTP request failure with status details.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether err is worth another attempt: transport errors
// and 429/5xx responses are, other HTTP statuses and cancellation are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}
	return true
}

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(err error)
}

// LogrusFailures adapts a logrus logger to FailureLogger.
type LogrusFailures struct {
	Logger logrus.FieldLogger
}

func (l LogrusFailures) LogFailure(err error) {
	entry := l.Logger.WithError(err)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		entry = entry.WithField("status", httpErr.StatusCode)
	}
	entry.Warn("request failed")
}

// RetryPolicy bounds how often a failed request is re-sent. Attempts count
// the first try. Retries happen inside the admitted slot, so they never draw
// extra tokens from the pacer.
type RetryPolicy struct {
	MaxAttempts int
	ShouldRetry func(error) bool              // nil retries every error
	Backoff     func(retry int) time.Duration // retry is 1 for the first re-send
	Sleeper     pacer.Sleeper                 // defaults to pacer.TimerSleeper
}

// ExponentialBackoff doubles base per retry, capped at max.
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(retry int) time.Duration {
		d := base
		for i := 1; i < retry && (max <= 0 || d < max); i++ {
			d *= 2
		}
		if max > 0 && d > max {
			d = max
		}
		return d
	}
}

type retryRequester struct {
	inner  Requester
	policy RetryPolicy
}

// WithRetry wraps req so retryable failures are re-sent. A policy with at
// most one attempt returns req unchanged.
func WithRetry(req Requester, policy RetryPolicy) Requester {
	if policy.MaxAttempts <= 1 {
		return req
	}
	if policy.Sleeper == nil {
		policy.Sleeper = pacer.TimerSleeper
	}
	return &retryRequester{inner: req, policy: policy}
}

func (r *retryRequester) Do(ctx context.Context) error {
	err := r.inner.Do(ctx)
	for retry := 1; err != nil && retry < r.policy.MaxAttempts; retry++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(err) {
			return err
		}
		if r.policy.Backoff != nil {
			if serr := r.policy.Sleeper.Sleep(ctx, r.policy.Backoff(retry)); serr != nil {
				return serr
			}
		}
		err = r.inner.Do(ctx)
	}
	return err
}

type loggingRequester struct {
	inner  Requester
	logger FailureLogger
}

// WithLogging wraps a Requester to log failures.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return &loggingRequester{inner: req, logger: logger}
}

func (l *loggingRequester) Do(ctx context.Context) error {
	err := l.inner.Do(ctx)
	if err != nil {
		l.logger.LogFailure(err)
	}
	return err
}
