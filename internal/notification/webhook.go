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

// WebhookNotifier posts job reports as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// webhookPayload is the body posted for each alert. Report fields are
// flattened into an object keyed by field name.
type webhookPayload struct {
	Event   string            `json:"event,omitempty"`
	Level   AlertLevel        `json:"level"`
	JobID   string            `json:"job_id,omitempty"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Report  map[string]string `json:"report,omitempty"`
	TS      string            `json:"ts"`
}

func newWebhookPayload(alert Alert, now time.Time) webhookPayload {
	p := webhookPayload{
		Event:   alert.Event,
		Level:   alert.Level,
		JobID:   alert.JobID,
		Title:   alert.Title,
		Message: alert.Message,
		TS:      now.UTC().Format(time.RFC3339Nano),
	}
	if len(alert.Fields) > 0 {
		p.Report = make(map[string]string, len(alert.Fields))
		for _, f := range alert.Fields {
			p.Report[f.Name] = f.Value
		}
	}
	return p
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(newWebhookPayload(alert, w.now()))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if alert.Event != "" {
		req.Header.Set("X-Backtest-Event", alert.Event)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[webhook] delivered %s for job %s", alert.Event, shortID(alert.JobID))
	return nil
}
