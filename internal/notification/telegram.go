package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"
)

var levelEmoji = map[AlertLevel]string{
	AlertInfo:     "ℹ️",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

// TelegramNotifier sends trade alerts via the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: Target chat/group/channel ID
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       renderTelegram(alert),
		"parse_mode": "MarkdownV2",
	})

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[telegram] sent %s alert: %s", alert.Event, alert.Title)
	return nil
}

// renderTelegram formats the alert as MarkdownV2: emoji + bold title,
// message, then the trade fields as key/value lines in stable order.
func renderTelegram(alert Alert) string {
	var b strings.Builder
	emoji, ok := levelEmoji[alert.Level]
	if !ok {
		emoji = levelEmoji[AlertInfo]
	}
	fmt.Fprintf(&b, "%s *%s*\n\n%s", emoji, escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))

	if len(alert.Fields) > 0 {
		keys := make([]string, 0, len(alert.Fields))
		for k := range alert.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		// Keys are snake_case identifiers; inside a code span MarkdownV2
		// escaping would render the backslashes literally.
		for _, k := range keys {
			fmt.Fprintf(&b, "\n`%s`: %s", k, escapeMarkdown(alert.Fields[k]))
		}
	}
	return b.String()
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	const specials = `_*[]()~` + "`" + `>#+-=|{}.!`
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(specials, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
