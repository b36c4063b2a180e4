package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tradingview-alert-bot/internal/models"
)

// Notifier pushes human-readable summaries to the operator channel. Every
// terminal alert state produces exactly one notification; the pipeline owns
// that guarantee, the notifier just delivers.
type Notifier interface {
	NotifyPending(ctx context.Context, a *models.Alert, units float64) error
	NotifyOutcome(ctx context.Context, a *models.Alert, trade *models.Trade) error
}

// LogNotifier writes notifications to the structured log. Used when no chat
// channel is configured and as the fallback sink in tests.
type LogNotifier struct {
	logger *zap.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) NotifyPending(ctx context.Context, a *models.Alert, units float64) error {
	n.logger.Info("ALERT AWAITING CONFIRMATION", zap.String("summary", PendingSummary(a, units)))
	return nil
}

func (n *LogNotifier) NotifyOutcome(ctx context.Context, a *models.Alert, trade *models.Trade) error {
	n.logger.Info("ALERT SETTLED", zap.String("summary", OutcomeSummary(a, trade)))
	return nil
}

// PendingSummary renders the confirmation prompt for an admitted alert.
func PendingSummary(a *models.Alert, units float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s @ %g, stop %g", strings.ToUpper(a.Side), a.Symbol, a.Timeframe, a.Entry, a.Stop)
	if a.Targets != "" {
		fmt.Fprintf(&b, ", targets %s", a.Targets)
	}
	fmt.Fprintf(&b, " | size %.4f units", units)
	if a.Confidence > 0 {
		fmt.Fprintf(&b, " | confidence %.0f%%", a.Confidence*100)
	}
	if a.Rationale != "" {
		fmt.Fprintf(&b, "\n%s", a.Rationale)
	}
	fmt.Fprintf(&b, "\nalert %s", a.AlertID)
	return b.String()
}

// OutcomeSummary renders the terminal-state notification for an alert.
func OutcomeSummary(a *models.Alert, trade *models.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", a.Symbol, a.AlertID, strings.ToUpper(a.Status))
	if a.BlockReason != "" {
		fmt.Fprintf(&b, " (%s)", a.BlockReason)
	}
	if trade != nil {
		fmt.Fprintf(&b, " | %s on %s, %.4f units", trade.Status, trade.Venue, trade.Units)
		if trade.VenueOrderID != nil {
			fmt.Fprintf(&b, ", order %s", *trade.VenueOrderID)
		}
	}
	return b.String()
}
