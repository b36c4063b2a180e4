package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validation errors for inbound payloads. These are rejected at the boundary
// and never create an alert record.
var (
	ErrMissingField = errors.New("missing required field")
	ErrBadNumber    = errors.New("numeric field is not finite")
	ErrBadSide      = errors.New("side must be long or short")
)

// Payload is the inbound trade signal as delivered by the webhook.
type Payload struct {
	Symbol              string    `json:"symbol"`
	Timeframe           string    `json:"timeframe"`
	Side                string    `json:"side"`
	Entry               float64   `json:"entry"`
	Stop                float64   `json:"stop"`
	Targets             []float64 `json:"targets,omitempty"`
	Confidence          float64   `json:"confidence,omitempty"`
	Rationale           string    `json:"rationale,omitempty"`
	RiskPercentOverride *float64  `json:"riskPercentOverride,omitempty"`
}

// Parse decodes and validates a raw webhook body.
func Parse(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks required fields and numeric sanity.
func (p *Payload) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("%w: symbol", ErrMissingField)
	}
	if strings.TrimSpace(p.Timeframe) == "" {
		return fmt.Errorf("%w: timeframe", ErrMissingField)
	}
	side := strings.ToLower(strings.TrimSpace(p.Side))
	if side != "long" && side != "short" {
		return fmt.Errorf("%w: got %q", ErrBadSide, p.Side)
	}
	if !isFinite(p.Entry) || p.Entry == 0 {
		return fmt.Errorf("%w: entry", ErrBadNumber)
	}
	if !isFinite(p.Stop) || p.Stop == 0 {
		return fmt.Errorf("%w: stop", ErrBadNumber)
	}
	for i, t := range p.Targets {
		if !isFinite(t) {
			return fmt.Errorf("%w: targets[%d]", ErrBadNumber, i)
		}
	}
	if p.RiskPercentOverride != nil && (!isFinite(*p.RiskPercentOverride) || *p.RiskPercentOverride <= 0) {
		return fmt.Errorf("%w: riskPercentOverride", ErrBadNumber)
	}
	return nil
}

// Normalize canonicalizes the fields that carry economic meaning.
func (p *Payload) Normalize() {
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	p.Timeframe = strings.ToLower(strings.TrimSpace(p.Timeframe))
	p.Side = strings.ToLower(strings.TrimSpace(p.Side))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
