package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier POSTs signal alerts to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
// url: The HTTP endpoint to POST alerts to.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	// Signal-shaped payload: consumers get the levels as numbers, not a
	// prose message to parse.
	payload := map[string]interface{}{
		"symbol":      alert.Symbol,
		"decision":    string(alert.Decision),
		"price":       alert.Price,
		"stop_loss":   alert.StopLoss,
		"take_profit": alert.TakeProfit,
		"rsi":         alert.RSI,
		"confidence":  alert.Confidence,
		"reason":      alert.Reason,
		"ts":          time.Now().UTC().Format(time.RFC3339Nano),
	}
	if alert.Pattern != "" {
		payload["pattern"] = alert.Pattern
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[webhook] sent %s %s to %s", alert.Decision, alert.Symbol, w.url)
	return nil
}
