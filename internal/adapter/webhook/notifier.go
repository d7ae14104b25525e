// Package webhook implements the notifier port as a single JSON POST to the
// caller-supplied callback URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/PageForge/internal/domain/task"
	"github.com/Strob0t/PageForge/internal/resilience"
)

const providerName = "webhook"

// Notifier posts task outcomes to arbitrary callback URLs. One attempt per
// outcome, no retries; the caller decides what a failed delivery means.
type Notifier struct {
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewNotifier creates a webhook notifier with the given delivery timeout.
func NewNotifier(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing deliveries.
func (n *Notifier) SetBreaker(b *resilience.Breaker) {
	n.breaker = b
}

func (n *Notifier) Name() string { return providerName }

// Send delivers the outcome payload. Non-2xx responses are errors.
func (n *Notifier) Send(ctx context.Context, url string, outcome task.Outcome) error {
	if n.breaker != nil {
		return n.breaker.Execute(func() error {
			return n.deliver(ctx, url, outcome)
		})
	}
	return n.deliver(ctx, url, outcome)
}

func (n *Notifier) deliver(ctx context.Context, url string, outcome task.Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook callback %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
