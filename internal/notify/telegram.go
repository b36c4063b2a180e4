package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"tradingview-alert-bot/internal/config"
	"tradingview-alert-bot/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers operator notifications through a Telegram bot.
// Delivery failures are logged but never fail the pipeline stage: the alert
// record remains the source of truth.
type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
	logger *zap.Logger
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a Telegram-backed notifier.
func NewTelegramNotifier(cfg *config.Telegram, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		client: resty.New().SetBaseURL(telegramAPIBase),
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		logger: logger.Named("telegram-notifier"),
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (n *TelegramNotifier) SetBaseURL(url string) {
	n.client.SetBaseURL(url)
}

func (n *TelegramNotifier) NotifyPending(ctx context.Context, a *models.Alert, units float64) error {
	text := "⏳ " + PendingSummary(a, units) +
		fmt.Sprintf("\nconfirm: /confirm %s\ncancel: /cancel %s", a.AlertID, a.AlertID)
	return n.send(ctx, text)
}

func (n *TelegramNotifier) NotifyOutcome(ctx context.Context, a *models.Alert, trade *models.Trade) error {
	prefix := "ℹ️ "
	switch a.Status {
	case models.AlertStatusExecuted:
		prefix = "✅ "
	case models.AlertStatusError:
		prefix = "❌ "
	case models.AlertStatusBlocked:
		prefix = "⛔ "
	}
	return n.send(ctx, prefix+OutcomeSummary(a, trade))
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"chat_id": n.chatID, "text": text}).
		Post(fmt.Sprintf("/bot%s/sendMessage", n.token))
	if err != nil {
		n.logger.Warn("Failed to deliver Telegram notification", zap.Error(err))
		return err
	}
	if resp.IsError() {
		n.logger.Warn("Telegram API rejected notification",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode())
	}
	return nil
}
