package models

import "gorm.io/gorm"

// Alert statuses. The terminal ones never transition again.
const (
	AlertStatusPending   = "pending"
	AlertStatusConfirmed = "confirmed"
	AlertStatusExecuted  = "executed"
	AlertStatusCancelled = "cancelled"
	AlertStatusExpired   = "expired"
	AlertStatusBlocked   = "blocked"
	AlertStatusError     = "error"
)

// TerminalStatuses lists the statuses an alert can never leave.
var TerminalStatuses = []string{
	AlertStatusExecuted,
	AlertStatusCancelled,
	AlertStatusExpired,
	AlertStatusBlocked,
	AlertStatusError,
}

// Alert represents a candidate trade signal and its processing record.
// Rows are never deleted; the fingerprint dedups redelivered signals.
type Alert struct {
	gorm.Model
	AlertID         string `gorm:"uniqueIndex;not null"`
	Fingerprint     string `gorm:"uniqueIndex;not null"`
	Symbol          string
	Timeframe       string
	Side            string // "long" or "short"
	Entry           float64
	Stop            float64
	Targets         string // comma-joined target prices
	Confidence      float64
	Rationale       string
	RiskOverridePct *float64
	Status          string `gorm:"default:'pending'"`
	BlockReason     string
	RawPayload      string `gorm:"type:text"`
}

// IsTerminal reports whether the alert has reached a terminal status.
func (a *Alert) IsTerminal() bool {
	for _, s := range TerminalStatuses {
		if a.Status == s {
			return true
		}
	}
	return false
}
