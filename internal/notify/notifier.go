package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"pgvault/logger"
)

const (
	maxAttempts    = 3
	defaultBackoff = 5 * time.Second
	requestTimeout = 30 * time.Second
)

// Notifier posts status payloads to the configured webhook. Delivery failure
// never fails the run that produced the payload: after the retries are
// exhausted the payload goes to the dead-letter file and Notify returns
// false.
type Notifier struct {
	endpoint   string
	deadLetter string
	client     *http.Client
	backoff    time.Duration
}

type Option func(*Notifier)

func WithBackoff(d time.Duration) Option {
	return func(n *Notifier) { n.backoff = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

func New(endpoint, deadLetterPath string, opts ...Option) *Notifier {
	n := &Notifier{
		endpoint:   endpoint,
		deadLetter: deadLetterPath,
		client:     &http.Client{Timeout: requestTimeout},
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify delivers the payload, retrying up to 3 times with a fixed backoff
// on transport errors and non-2xx responses. Returns whether delivery
// succeeded. A notifier with no endpoint configured is a no-op that reports
// success.
func (n *Notifier) Notify(ctx context.Context, payload Payload) bool {
	if n.endpoint == "" {
		return true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to encode webhook payload", zap.Error(err))
		return false
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := n.post(ctx, body); err == nil {
			logger.Info("webhook delivered",
				zap.String("action", payload.Action),
				zap.Int("attempt", attempt))
			return true
		} else {
			logger.Warn("webhook delivery failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				n.writeDeadLetter(body)
				return false
			case <-time.After(n.backoff):
			}
		}
	}

	n.writeDeadLetter(body)
	return false
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// writeDeadLetter appends the undelivered payload as one JSON line.
func (n *Notifier) writeDeadLetter(body []byte) {
	if n.deadLetter == "" {
		return
	}

	fi, err := os.OpenFile(n.deadLetter, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		logger.Error("failed to open dead-letter file", zap.Error(err))
		return
	}
	defer fi.Close()

	if _, err := fi.Write(append(body, '\n')); err != nil {
		logger.Error("failed to write dead-letter entry", zap.Error(err))
		return
	}
	logger.Warn("webhook payload written to dead-letter file",
		zap.String("file", n.deadLetter))
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected response status %d", e.code)
}
