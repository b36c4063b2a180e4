package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint returns a deterministic hash over the payload's normalized
// economically-relevant fields. Delivery timestamps, confidence and rationale
// text are deliberately excluded so a redelivered signal with identical trade
// parameters collapses to one fingerprint.
func Fingerprint(p *Payload) string {
	targets := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		targets[i] = formatPrice(t)
	}

	parts := []string{
		strings.ToUpper(strings.TrimSpace(p.Symbol)),
		strings.ToLower(strings.TrimSpace(p.Timeframe)),
		strings.ToLower(strings.TrimSpace(p.Side)),
		formatPrice(p.Entry),
		formatPrice(p.Stop),
		strings.Join(targets, ","),
	}
	if p.RiskPercentOverride != nil {
		parts = append(parts, formatPrice(*p.RiskPercentOverride))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// formatPrice renders a price with a fixed precision so that equal values
// always hash identically regardless of how they were serialized.
func formatPrice(f float64) string {
	return strconv.FormatFloat(f, 'f', 8, 64)
}
