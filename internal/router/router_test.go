package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradingview-alert-bot/internal/models"
	"tradingview-alert-bot/internal/risk"
)

// fakeVenue scripts PlaceOrder outcomes per attempt.
type fakeVenue struct {
	name     string
	attempts int
	respond  func(attempt int) (*Fill, error)
}

func (f *fakeVenue) Name() string { return f.name }

func (f *fakeVenue) PlaceOrder(ctx context.Context, order Order) (*Fill, error) {
	f.attempts++
	return f.respond(f.attempts)
}

func testAlert(symbol string) *models.Alert {
	return &models.Alert{
		AlertID: "alert-1",
		Symbol:  symbol,
		Side:    "long",
		Entry:   100,
		Stop:    95,
	}
}

func newTestRouter(venues map[VenueKind]Venue, paperMode bool) *Router {
	lotSteps := map[VenueKind]string{
		VenueCrypto:   "0.00001",
		VenueFX:       "1000",
		VenueEquities: "1",
	}
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 4 * time.Millisecond}
	return NewRouter(venues, lotSteps, policy, paperMode, zap.NewNop())
}

func TestExecute_PaperModeSimulates(t *testing.T) {
	r := newTestRouter(nil, true)

	trade, err := r.Execute(context.Background(), testAlert("BTCUSDT"), risk.SizeInfo{Units: 600})

	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusPaperSimulated, trade.Status)
	assert.Equal(t, "paper", trade.Venue)
	assert.NotNil(t, trade.VenueOrderID)
	assert.Equal(t, 600.0, trade.Units)
	assert.Len(t, r.Paper().Placed(), 1)
}

func TestExecute_UnknownSymbolIsTerminal(t *testing.T) {
	r := newTestRouter(nil, true)

	trade, err := r.Execute(context.Background(), testAlert("ZZZ1"), risk.SizeInfo{Units: 100})

	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, models.TradeStatusFailed, trade.Status)
	assert.Equal(t, string(VenueUnknown), trade.Venue)
	assert.Empty(t, r.Paper().Placed(), "no venue call for unroutable symbols")
}

func TestExecute_TransientFailuresRetriedThenSucceed(t *testing.T) {
	fv := &fakeVenue{name: "crypto", respond: func(attempt int) (*Fill, error) {
		if attempt < 3 {
			return nil, Transient(errors.New("502"))
		}
		return &Fill{VenueOrderID: "ok-1", Units: 600}, nil
	}}
	r := newTestRouter(map[VenueKind]Venue{VenueCrypto: fv}, false)

	trade, err := r.Execute(context.Background(), testAlert("BTCUSDT"), risk.SizeInfo{Units: 600})

	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusSubmitted, trade.Status)
	assert.Equal(t, 3, fv.attempts)
	require.NotNil(t, trade.VenueOrderID)
	assert.Equal(t, "ok-1", *trade.VenueOrderID)
}

func TestExecute_RetryBudgetExhausted(t *testing.T) {
	fv := &fakeVenue{name: "crypto", respond: func(attempt int) (*Fill, error) {
		return nil, Transient(errors.New("connection reset"))
	}}
	r := newTestRouter(map[VenueKind]Venue{VenueCrypto: fv}, false)

	trade, err := r.Execute(context.Background(), testAlert("BTCUSDT"), risk.SizeInfo{Units: 600})

	require.Error(t, err)
	assert.Equal(t, 5, fv.attempts)
	assert.Equal(t, models.TradeStatusFailed, trade.Status)
}

func TestExecute_TerminalVenueErrorNotRetried(t *testing.T) {
	fv := &fakeVenue{name: "equities", respond: func(attempt int) (*Fill, error) {
		return nil, Terminalf("insufficient balance")
	}}
	r := newTestRouter(map[VenueKind]Venue{VenueEquities: fv}, false)

	trade, err := r.Execute(context.Background(), testAlert("AAPL"), risk.SizeInfo{Units: 50})

	require.Error(t, err)
	assert.Equal(t, 1, fv.attempts)
	assert.Equal(t, models.TradeStatusFailed, trade.Status)
	assert.Contains(t, trade.RawResponse, "insufficient balance")
}

func TestExecute_QuantizesToVenueLotStep(t *testing.T) {
	var got Order
	fv := &fakeVenue{name: "fx", respond: func(attempt int) (*Fill, error) {
		return &Fill{VenueOrderID: "fx-1"}, nil
	}}
	r := newTestRouter(map[VenueKind]Venue{VenueFX: captureVenue{fv, &got}}, false)

	trade, err := r.Execute(context.Background(), testAlert("EURUSD"), risk.SizeInfo{Units: 1537})

	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Units, "fx lot step floors 1537 to 1000")
	assert.Equal(t, 1000.0, trade.Units)
}

func TestExecute_ZeroQuantizedUnitsIsTerminal(t *testing.T) {
	fv := &fakeVenue{name: "fx", respond: func(attempt int) (*Fill, error) {
		t.Fatal("venue must not be called for zero units")
		return nil, nil
	}}
	r := newTestRouter(map[VenueKind]Venue{VenueFX: fv}, false)

	trade, err := r.Execute(context.Background(), testAlert("EURUSD"), risk.SizeInfo{Units: 400})

	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, models.TradeStatusFailed, trade.Status)
}

func TestExecute_IndexRoutesToFXVenue(t *testing.T) {
	fv := &fakeVenue{name: "fx", respond: func(attempt int) (*Fill, error) {
		return &Fill{VenueOrderID: "cfd-1"}, nil
	}}
	r := newTestRouter(map[VenueKind]Venue{VenueFX: fv}, false)

	trade, err := r.Execute(context.Background(), testAlert("SPX500"), risk.SizeInfo{Units: 2000})

	require.NoError(t, err)
	assert.Equal(t, "fx", trade.Venue)
	assert.Equal(t, 1, fv.attempts)
}

// captureVenue records the order passed to the wrapped venue.
type captureVenue struct {
	inner Venue
	order *Order
}

func (c captureVenue) Name() string { return c.inner.Name() }

func (c captureVenue) PlaceOrder(ctx context.Context, order Order) (*Fill, error) {
	*c.order = order
	return c.inner.PlaceOrder(ctx, order)
}
