package store

import (
	"context"
	"errors"

	"tradingview-alert-bot/internal/alert"
	"tradingview-alert-bot/internal/models"
)

// ErrStoreUnavailable wraps persistence-layer faults. Callers must abort the
// admission and signal the source to redeliver; the atomicity guarantee makes
// redelivery safe.
var ErrStoreUnavailable = errors.New("alert store unavailable")

// ErrTerminalState is returned when a status update would move an alert out
// of a terminal state.
var ErrTerminalState = errors.New("alert already in a terminal state")

// ErrNotFound is returned when no alert exists for the given id.
var ErrNotFound = errors.New("alert not found")

// Storage is the persistence contract shared by the relational and in-memory
// backends. Admit must be atomic with respect to concurrent admissions of the
// same fingerprint.
type Storage interface {
	// Admit inserts the alert if its fingerprint is unseen and returns the
	// canonical record. On a duplicate fingerprint the original record is
	// returned untouched and isNew is false.
	Admit(ctx context.Context, fingerprint string, raw []byte, p *alert.Payload) (rec *models.Alert, isNew bool, err error)

	// GetByAlertID looks up an alert by its generated id.
	GetByAlertID(ctx context.Context, alertID string) (*models.Alert, error)

	// UpdateStatus transitions an alert to a new status. Transitions out of a
	// terminal status are refused with ErrTerminalState.
	UpdateStatus(ctx context.Context, alertID, status, blockReason string) error
}
