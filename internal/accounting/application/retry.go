package application

import (
	"context"
	"errors"
	"log"
	"time"

	accounting "gridledger/internal/accounting/domain"
	"gridledger/internal/observability/metrics"
)

const (
	// DefaultReadAttempts is the number of extra attempts after a
	// failed interval read.
	DefaultReadAttempts = 2
	// DefaultRetryDelay is the pause between attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// RetryingReader decorates an IntervalReader with bounded retry for
// transient store failures. Context cancellation is never retried.
type RetryingReader struct {
	inner    IntervalReader
	attempts int
	delay    time.Duration
	logger   *log.Logger
}

// RetryOption configures a RetryingReader.
type RetryOption func(*RetryingReader)

// WithAttempts overrides how many retries follow a failed read.
func WithAttempts(attempts int) RetryOption {
	return func(r *RetryingReader) {
		if attempts >= 0 {
			r.attempts = attempts
		}
	}
}

// WithRetryDelay overrides the pause between attempts.
func WithRetryDelay(delay time.Duration) RetryOption {
	return func(r *RetryingReader) {
		if delay > 0 {
			r.delay = delay
		}
	}
}

// NewRetryingReader wraps a reader.
func NewRetryingReader(inner IntervalReader, logger *log.Logger, opts ...RetryOption) (*RetryingReader, error) {
	if inner == nil {
		return nil, errors.New("retrying reader: nil inner reader")
	}
	if logger == nil {
		return nil, errors.New("retrying reader: nil logger")
	}
	reader := &RetryingReader{
		inner:    inner,
		attempts: DefaultReadAttempts,
		delay:    DefaultRetryDelay,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader, nil
}

// Read delegates to the inner reader, retrying transient failures.
func (r *RetryingReader) Read(ctx context.Context, window accounting.Window) ([]accounting.IntervalRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			metrics.IncFetchRetry()
			r.logger.Printf("interval read retry %d/%d for entity %s: %v",
				attempt, r.attempts, window.EntityID, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.delay):
			}
		}
		records, err := r.inner.Read(ctx, window)
		if err == nil {
			return records, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
