package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	telegramAPI = "https://api.telegram.org"

	// telegramMaxText is the Bot API limit on a message body.
	telegramMaxText = 4096
	// telegramMaxMessage bounds the free-text part so the report still fits.
	telegramMaxMessage = 1500

	telegramRule = "━━━━━━━━━━━━━━━"
)

// TelegramNotifier posts job reports to a chat through the Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegramNotifier creates a notifier for the bot botToken posting to
// chatID (a user, group or channel).
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     telegramReport(alert),
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
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

	log.Printf("[telegram] sent %s report for job %s", alert.Level, shortID(alert.JobID))
	return nil
}

// telegramReport renders alert as a MarkdownV2 message: a bold headline, the
// report fields as `code` values between rules, then the job handle.
func telegramReport(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n%s\n", levelIcon(alert.Level), escapeMarkdown(alert.Title), telegramRule)

	if len(alert.Fields) == 0 || alert.Level == AlertCritical {
		b.WriteString(escapeMarkdown(truncate(alert.Message, telegramMaxMessage)))
		b.WriteByte('\n')
	}
	for _, f := range alert.Fields {
		fmt.Fprintf(&b, "%s: `%s`\n", escapeMarkdown(f.Name), escapeCode(f.Value))
	}
	b.WriteString(telegramRule)
	if alert.JobID != "" {
		fmt.Fprintf(&b, "\nJob: `%s`", escapeCode(alert.JobID))
	}
	return truncate(b.String(), telegramMaxText)
}

func levelIcon(level AlertLevel) string {
	switch level {
	case AlertWarning:
		return "⚠️"
	case AlertCritical:
		return "🚨"
	}
	return "✅"
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	const specials = "_*[]()~`>#+-=|{}.!\\"
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeCode escapes the two characters MarkdownV2 reserves inside code spans.
func escapeCode(s string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(s)
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
