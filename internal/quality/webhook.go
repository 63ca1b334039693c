package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gridledger/internal/observability/metrics"
)

// Channel delivers quality reports.
type Channel interface {
	Send(ctx context.Context, report Report) error
}

// WebhookChannel posts reports to an HTTP endpoint with bounded
// retry. Delivery is best effort; the caller decides whether a failed
// send matters.
type WebhookChannel struct {
	url      string
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// WebhookOption configures the channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithRetry overrides the delivery attempt limit and base backoff.
func WithRetry(attempts int, backoff time.Duration) WebhookOption {
	return func(ch *WebhookChannel) {
		if attempts >= 0 {
			ch.attempts = attempts
		}
		if backoff > 0 {
			ch.backoff = backoff
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("quality webhook: empty url")
	}
	channel := &WebhookChannel{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 2,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send posts the report, retrying transient failures with linear
// backoff.
func (w *WebhookChannel) Send(ctx context.Context, report Report) error {
	if w == nil || w.url == "" {
		return errors.New("quality webhook: empty url")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= w.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				metrics.IncQualityWebhook(metrics.ResultError)
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * w.backoff):
			}
		}
		if lastErr = w.post(ctx, body); lastErr == nil {
			metrics.IncQualityWebhook(metrics.ResultSuccess)
			return nil
		}
	}
	metrics.IncQualityWebhook(metrics.ResultError)
	return lastErr
}

func (w *WebhookChannel) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("quality webhook: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
