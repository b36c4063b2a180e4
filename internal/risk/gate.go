package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"tradingview-alert-bot/internal/models"
)

// Block reason codes, in the order they are checked.
const (
	ReasonDegenerateStop   = "DEGENERATE_STOP"
	ReasonDrawdownExceeded = "DRAWDOWN_EXCEEDED"
)

// AccountState is the freshest view of the account at gate time. The gate is
// invoked twice per alert and must be handed a newly assembled state both
// times.
type AccountState struct {
	Equity                float64
	RiskFraction          float64
	DrawdownLimitFraction float64
	DailyRealizedPnL      float64
}

// SizeInfo is the derived position size. It is recomputed at each gate
// invocation and never persisted on the alert.
type SizeInfo struct {
	Units        float64
	StopDistance float64
	RiskAmount   float64
}

// Block describes why an alert was refused.
type Block struct {
	Reason string
}

// Gate decides whether an alert may proceed and how large its position is.
type Gate struct{}

// NewGate creates a risk gate.
func NewGate() *Gate {
	return &Gate{}
}

// CheckAndSize evaluates the block conditions in order, first match wins, and
// sizes the position on admission. A risk override on the alert replaces the
// account's default risk fraction.
func (g *Gate) CheckAndSize(a *models.Alert, state AccountState) (SizeInfo, *Block) {
	stopDistance := math.Abs(a.Entry - a.Stop)
	if stopDistance <= 0 || !isFinite(stopDistance) || !isFinite(a.Entry) || !isFinite(a.Stop) {
		return SizeInfo{}, &Block{Reason: ReasonDegenerateStop}
	}

	if -state.DailyRealizedPnL >= state.Equity*state.DrawdownLimitFraction {
		return SizeInfo{}, &Block{Reason: ReasonDrawdownExceeded}
	}

	riskFraction := state.RiskFraction
	if a.RiskOverridePct != nil {
		riskFraction = *a.RiskOverridePct / 100
	}

	riskAmount := state.Equity * riskFraction
	units := riskAmount / stopDistance

	return SizeInfo{
		Units:        units,
		StopDistance: stopDistance,
		RiskAmount:   riskAmount,
	}, nil
}

// QuantizeDown floors units to a multiple of the venue lot step. Rounding is
// always toward zero so quantization can never increase risk.
func QuantizeDown(units float64, lotStep string) (float64, error) {
	step, err := decimal.NewFromString(lotStep)
	if err != nil {
		return 0, fmt.Errorf("invalid lot step %q: %w", lotStep, err)
	}
	if !step.IsPositive() {
		return 0, fmt.Errorf("invalid lot step %q: must be positive", lotStep)
	}
	u := decimal.NewFromFloat(units)
	floored := u.Div(step).Floor().Mul(step)
	f, _ := floored.Float64()
	return f, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
