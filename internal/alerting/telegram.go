package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// Min interval between two messages to the same chat, under Telegram's
// ~30/min per-chat limit.
const telegramSendInterval = 2 * time.Second

// TelegramNotifier sends alerts to one chat through the Bot API.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
}

const defaultTelegramTimeout = 10 * time.Second

// NewTelegramNotifier connects to the Bot API and verifies the token. Every
// Bot API request is bounded by timeout (10s when zero).
func NewTelegramNotifier(token string, chatID int64, timeout time.Duration) (*TelegramNotifier, error) {
	return newTelegramNotifier(token, chatID, tgbotapi.APIEndpoint, timeout)
}

func newTelegramNotifier(token string, chatID int64, endpoint string, timeout time.Duration) (*TelegramNotifier, error) {
	if timeout <= 0 {
		timeout = defaultTelegramTimeout
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	slog.Info("Telegram notifier initialized", "chat_id", chatID, "bot", bot.Self.UserName)
	return &TelegramNotifier{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(telegramSendInterval), 1),
	}, nil
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Notify(ctx context.Context, a Alert) error {
	waitStart := time.Now()
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	msg := tgbotapi.NewMessage(n.chatID, formatTelegramAlert(a))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	sendStart := time.Now()
	// Send takes no context; the client timeout bounds the request and ctx
	// bounds the wait.
	done := make(chan error, 1)
	go func() {
		_, err := n.bot.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
	slog.Debug("Telegram send: success",
		"matchup", a.MatchupID,
		"wait_duration", sendStart.Sub(waitStart),
		"send_duration", time.Since(sendStart))
	return nil
}

func formatTelegramAlert(a Alert) string {
	var b strings.Builder
	b.WriteString("🎾 *Streak reached*\n\n")
	fmt.Fprintf(&b, "*%s*\n", escapeMarkdown(a.MatchupID))
	fmt.Fprintf(&b, "Current winner: *%s*\n", escapeMarkdown(a.Winner))
	fmt.Fprintf(&b, "Streak: *%d* \\(threshold %d\\)\n", a.Streak, a.Threshold)
	fmt.Fprintf(&b, "Score: %s\n", escapeMarkdown(a.ScoreLabel))
	fmt.Fprintf(&b, "_%s_", escapeMarkdown(models.FormatTimestamp(a.At)))
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
