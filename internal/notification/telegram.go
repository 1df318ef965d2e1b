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

	"candlesignal/internal/model"
)

// TelegramNotifier sends signal alerts via Telegram Bot API.
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
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       telegramText(alert),
		"parse_mode": "MarkdownV2",
	})

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
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

	log.Printf("[telegram] sent %s alert for %s", alert.Decision, alert.Symbol)
	return nil
}

// telegramText renders the alert as a MarkdownV2 message: decision-colored
// headline, then the risk levels and the evaluation context line by line.
func telegramText(a Alert) string {
	emoji := "🟢"
	if a.Decision == model.DecisionSell {
		emoji = "🔴"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n", emoji, escapeMarkdown(a.Headline()))
	fmt.Fprintf(&b, "stop %s / target %s\n",
		escapeMarkdown(fmt.Sprintf("%.2f", a.StopLoss)),
		escapeMarkdown(fmt.Sprintf("%.2f", a.TakeProfit)))
	fmt.Fprintf(&b, "RSI %s, confidence %s%%\n",
		escapeMarkdown(fmt.Sprintf("%.1f", a.RSI)),
		escapeMarkdown(fmt.Sprintf("%.0f", a.Confidence*100)))
	if a.Pattern != "" {
		fmt.Fprintf(&b, "pattern %s\n", escapeMarkdown(a.Pattern))
	}
	b.WriteString(escapeMarkdown(a.Reason))
	return b.String()
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	specials := []byte{'_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!'}
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		for _, sp := range specials {
			if s[i] == sp {
				buf.WriteByte('\\')
				break
			}
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}
