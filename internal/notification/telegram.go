package notification

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier delivers alerts to one chat through the Bot API.
type TelegramNotifier struct {
	sendURL string
	chatID  string
	httpc   *http.Client
	log     *logrus.Entry
}

// NewTelegramNotifier creates a Telegram notifier for one chat.
func NewTelegramNotifier(botToken, chatID string, log *logrus.Entry) *TelegramNotifier {
	return &TelegramNotifier{
		sendURL: fmt.Sprintf("%s/bot%s/sendMessage", telegramAPI, botToken),
		chatID:  chatID,
		httpc:   &http.Client{Timeout: deliveryTimeout},
		log:     log,
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	status, err := postJSON(ctx, t.httpc, t.sendURL, map[string]any{
		"chat_id":    t.chatID,
		"text":       telegramText(alert),
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", status)
	}
	t.log.WithField("title", alert.Title).Debug("telegram alert delivered")
	return nil
}

// telegramText renders an alert as MarkdownV2: severity marker and bold
// title, the message, then one "key: value" line per context field in
// stable order.
func telegramText(alert Alert) string {
	var b strings.Builder
	b.WriteString(levelMarker(alert.Level))
	b.WriteString(" *")
	b.WriteString(escapeMarkdownV2(alert.Title))
	b.WriteString("*\n\n")
	b.WriteString(escapeMarkdownV2(alert.Message))

	keys := make([]string, 0, len(alert.Fields))
	for k := range alert.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(escapeMarkdownV2(k))
		b.WriteString(": ")
		b.WriteString(escapeMarkdownV2(alert.Fields[k]))
	}
	return b.String()
}

func levelMarker(l AlertLevel) string {
	switch l {
	case AlertCritical:
		return "🚨"
	case AlertWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Every character MarkdownV2 reserves; each gets a leading backslash.
const markdownV2Specials = "_*[]()~`>#+-=|{}.!"

func escapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(markdownV2Specials, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
