package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingview-alert-bot/internal/alert"
	"tradingview-alert-bot/internal/models"
)

// GormStore is the relational Storage backend.
type GormStore struct {
	db *gorm.DB
}

var _ Storage = (*GormStore)(nil)

// NewGormStore creates a Storage backed by the given gorm database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Admit performs an insert-if-absent keyed on the fingerprint's unique index.
// The ON CONFLICT DO NOTHING clause makes concurrent admissions of the same
// fingerprint resolve in the database, not in application code.
func (s *GormStore) Admit(ctx context.Context, fingerprint string, raw []byte, p *alert.Payload) (*models.Alert, bool, error) {
	targets := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		targets[i] = fmt.Sprintf("%g", t)
	}

	rec := models.Alert{
		AlertID:         uuid.New().String(),
		Fingerprint:     fingerprint,
		Symbol:          p.Symbol,
		Timeframe:       p.Timeframe,
		Side:            p.Side,
		Entry:           p.Entry,
		Stop:            p.Stop,
		Targets:         strings.Join(targets, ","),
		Confidence:      p.Confidence,
		Rationale:       p.Rationale,
		RiskOverridePct: p.RiskPercentOverride,
		Status:          models.AlertStatusPending,
		RawPayload:      string(raw),
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(&rec)
	if res.Error != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}

	if res.RowsAffected == 1 {
		return &rec, true, nil
	}

	// Duplicate fingerprint: return the original record untouched.
	var existing models.Alert
	if err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &existing, false, nil
}

// GetByAlertID looks up an alert by its generated id.
func (s *GormStore) GetByAlertID(ctx context.Context, alertID string) (*models.Alert, error) {
	var rec models.Alert
	err := s.db.WithContext(ctx).Where("alert_id = ?", alertID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// UpdateStatus transitions an alert, refusing to leave a terminal status.
// The guard is a WHERE clause on the current status so the check and the
// update are a single statement.
func (s *GormStore) UpdateStatus(ctx context.Context, alertID, status, blockReason string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("alert_id = ? AND status NOT IN ?", alertID, models.TerminalStatuses).
		Updates(map[string]interface{}{"status": status, "block_reason": blockReason})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the alert does not exist or it already settled.
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Alert{}).Where("alert_id = ?", alertID).Count(&count).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrTerminalState
	}
	return nil
}
