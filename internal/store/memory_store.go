package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tradingview-alert-bot/internal/alert"
	"tradingview-alert-bot/internal/models"
)

// MemoryStore is an embedded Storage backend with the same admission
// semantics as the relational one. Useful for tests and single-node runs
// where durability is not required.
type MemoryStore struct {
	mu            sync.Mutex
	byFingerprint map[string]*models.Alert
	byAlertID     map[string]*models.Alert
}

var _ Storage = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byFingerprint: make(map[string]*models.Alert),
		byAlertID:     make(map[string]*models.Alert),
	}
}

// Admit inserts the alert if its fingerprint is unseen. The store mutex makes
// the check-and-insert atomic for concurrent deliveries.
func (s *MemoryStore) Admit(ctx context.Context, fingerprint string, raw []byte, p *alert.Payload) (*models.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byFingerprint[fingerprint]; ok {
		cp := *existing
		return &cp, false, nil
	}

	targets := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		targets[i] = fmt.Sprintf("%g", t)
	}

	rec := &models.Alert{
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
	s.byFingerprint[fingerprint] = rec
	s.byAlertID[rec.AlertID] = rec

	cp := *rec
	return &cp, true, nil
}

// GetByAlertID looks up an alert by its generated id.
func (s *MemoryStore) GetByAlertID(ctx context.Context, alertID string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byAlertID[alertID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// UpdateStatus transitions an alert, refusing to leave a terminal status.
func (s *MemoryStore) UpdateStatus(ctx context.Context, alertID, status, blockReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byAlertID[alertID]
	if !ok {
		return ErrNotFound
	}
	if rec.IsTerminal() {
		return ErrTerminalState
	}
	rec.Status = status
	rec.BlockReason = blockReason
	return nil
}
