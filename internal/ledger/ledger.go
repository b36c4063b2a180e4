package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingview-alert-bot/internal/models"
)

// DayKey formats a point in time as the UTC calendar day key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Ledger is the append-only record of trades and daily realized P&L.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger creates a ledger over the given database.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// WithClock overrides the ledger's clock. Used by tests to pin the day.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Today returns the current UTC day key.
func (l *Ledger) Today() string {
	return DayKey(l.now())
}

// RecordTrade appends a trade row. Trades are never updated or deleted.
func (l *Ledger) RecordTrade(ctx context.Context, trade *models.Trade) error {
	if err := l.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}
	return nil
}

// TradeByAlertID returns the trade recorded for an alert, if any.
func (l *Ledger) TradeByAlertID(ctx context.Context, alertID string) (*models.Trade, error) {
	var trade models.Trade
	err := l.db.WithContext(ctx).Where("alert_id = ?", alertID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up trade: %w", err)
	}
	return &trade, nil
}

// DailyRealizedPnL returns the latest committed realized P&L for the day.
// A missing row reads as zero.
func (l *Ledger) DailyRealizedPnL(ctx context.Context, day string) (float64, error) {
	var entry models.DailyLedgerEntry
	err := l.db.WithContext(ctx).Where("day = ?", day).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read daily ledger: %w", err)
	}
	return entry.RealizedPnL, nil
}

// AdjustDailyRealizedPnL applies a settlement delta to the day's entry.
// The upsert increments in a single statement so concurrent settlements for
// the same day serialize in the database instead of losing updates.
func (l *Ledger) AdjustDailyRealizedPnL(ctx context.Context, day string, delta float64) error {
	entry := models.DailyLedgerEntry{Day: day, RealizedPnL: delta}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"realized_pnl": gorm.Expr("realized_pnl + ?", delta),
			}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to adjust daily ledger: %w", err)
	}
	return nil
}
