package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookChannel POSTs notifications as JSON to a configured URL.
type WebhookChannel struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookChannel creates a webhook notification channel.
func NewWebhookChannel(url string, enabled bool) *WebhookChannel {
	return &WebhookChannel{
		url:     url,
		enabled: enabled && url != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Channel.
func (w *WebhookChannel) Name() string { return "webhook" }

// IsEnabled implements Channel.
func (w *WebhookChannel) IsEnabled() bool { return w.enabled }

// Send implements Channel.
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id":   n.UserID,
		"kind":      string(n.Kind),
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Channel = (*WebhookChannel)(nil)
