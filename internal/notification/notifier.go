// Package notification delivers trading alerts to external channels and
// bridges them onto the event bus.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/bus"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one notification. Fields carries the structured context of the
// originating bus event (symbol, setup, side, reason) so backends can
// render it without re-parsing the message.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier delivers alerts to one backend.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log. Default backend when nothing
// external is configured.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	entry := n.log.WithFields(logrus.Fields{
		"level": alert.Level, "title": alert.Title,
	})
	for k, v := range alert.Fields {
		entry = entry.WithField(k, v)
	}
	entry.Info(alert.Message)
	return nil
}

// deliveryTimeout bounds one outbound notification request.
const deliveryTimeout = 10 * time.Second

// postJSON sends one JSON POST and reports the response status. The body
// is drained and discarded; backends act on the status code alone.
func postJSON(ctx context.Context, c *http.Client, url string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// payloadFields copies the named payload keys that are present into an
// alert field map.
func payloadFields(p bus.Payload, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := p.Str(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// Attach subscribes a notifier to the bus events a human wants to hear
// about: validated entries, placements and rejections. Delivery failures
// are logged and dropped.
func Attach(b *bus.Bus, n Notifier, log *logrus.Entry) error {
	send := func(ctx context.Context, alert Alert) {
		if err := n.Send(ctx, alert); err != nil {
			log.WithError(err).Warn("alert delivery failed")
		}
	}

	if err := b.Attach(bus.ValidEntrySignal, func(ctx context.Context, p bus.Payload) {
		send(ctx, Alert{
			Level: AlertInfo,
			Title: "Entry signal",
			Message: fmt.Sprintf("%s %s by %s (%s)",
				p.Str("side"), p.Str("symbol"), p.Str("setup"), p.Str("kind")),
			Fields: payloadFields(p, "symbol", "setup", "side", "kind"),
		})
	}); err != nil {
		return err
	}
	if err := b.Attach(bus.OrderPlaced, func(ctx context.Context, p bus.Payload) {
		send(ctx, Alert{
			Level:   AlertInfo,
			Title:   "Order placed",
			Message: fmt.Sprintf("%s %s", p.Str("side"), p.Str("symbol")),
			Fields:  payloadFields(p, "symbol", "side"),
		})
	}); err != nil {
		return err
	}
	return b.Attach(bus.OrderRejected, func(ctx context.Context, p bus.Payload) {
		send(ctx, Alert{
			Level:   AlertWarning,
			Title:   "Order rejected",
			Message: fmt.Sprintf("%s %s: %s", p.Str("side"), p.Str("symbol"), p.Str("reason")),
			Fields:  payloadFields(p, "symbol", "side", "reason"),
		})
	})
}
