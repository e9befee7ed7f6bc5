// Package webhook delivers engine events as JSON POSTs to a configured URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/memex/internal/core/domain"
	"github.com/custodia-labs/memex/internal/core/ports/driven"
	"github.com/custodia-labs/memex/internal/logger"
)

// Ensure Notifier implements the interface.
var _ driven.Notifier = (*Notifier)(nil)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// source identifies the sender in every payload.
const source = "memex"

// payload is the body POSTed for every event.
type payload struct {
	Event  string         `json:"event"`
	Data   map[string]any `json:"data,omitempty"`
	Source string         `json:"source"`
	SentAt time.Time      `json:"sent_at"`
}

// Notifier posts events to a webhook. Events the settings do not want are
// dropped silently.
type Notifier struct {
	client   *http.Client
	settings domain.NotificationSettings
	now      func() time.Time
}

// New creates a webhook notifier. It returns nil when notifications are
// disabled, so callers can pass the result straight to the gardener.
func New(settings domain.NotificationSettings) *Notifier {
	if !settings.Enabled || settings.WebhookURL == "" {
		return nil
	}
	return &Notifier{
		client:   &http.Client{Timeout: DefaultTimeout},
		settings: settings,
		now:      time.Now,
	}
}

// Notify POSTs the event. Non-2xx responses are returned as errors.
func (n *Notifier) Notify(ctx context.Context, event string, data map[string]any) error {
	if n == nil || !n.settings.Wants(event) {
		return nil
	}

	body, err := json.Marshal(payload{
		Event:  event,
		Data:   data,
		Source: source,
		SentAt: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", source)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d for %s", resp.StatusCode, event)
	}
	logger.Debug("Delivered %s to webhook", event)
	return nil
}
