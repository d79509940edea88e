package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WebhookNotifier mirrors alerts to a generic HTTP endpoint as JSON.
type WebhookNotifier struct {
	url   string
	httpc *http.Client
	log   *logrus.Entry
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, log *logrus.Entry) *WebhookNotifier {
	return &WebhookNotifier{
		url:   url,
		httpc: &http.Client{Timeout: deliveryTimeout},
		log:   log,
	}
}

type webhookPayload struct {
	Level   string            `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	SentAt  string            `json:"sent_at"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	status, err := postJSON(ctx, w.httpc, w.url, webhookPayload{
		Level:   string(alert.Level),
		Title:   alert.Title,
		Message: alert.Message,
		Fields:  alert.Fields,
		SentAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", status)
	}
	w.log.WithField("title", alert.Title).Debug("webhook alert delivered")
	return nil
}
