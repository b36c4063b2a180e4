package models

import "gorm.io/gorm"

// DailyLedgerEntry holds cumulative realized P&L for one UTC calendar day.
// Keyed by day in "2006-01-02" format.
type DailyLedgerEntry struct {
	gorm.Model
	Day         string  `gorm:"uniqueIndex;not null"`
	RealizedPnL float64 `gorm:"column:realized_pnl;not null;default:0"`
}
