package router

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradingview-alert-bot/internal/models"
	"tradingview-alert-bot/internal/risk"
)

// Router dispatches confirmed, sized orders to the venue matching the
// alert's symbol, with bounded retry for transient venue faults.
type Router struct {
	venues    map[VenueKind]Venue
	lotSteps  map[VenueKind]string
	policy    RetryPolicy
	paperMode bool
	paper     *PaperVenue
	logger    *zap.Logger
}

// NewRouter creates a router over the given venue implementations. In paper
// mode every order is simulated on the paper venue; symbol mapping is still
// enforced so unroutable symbols fail the same way they would live.
func NewRouter(venues map[VenueKind]Venue, lotSteps map[VenueKind]string, policy RetryPolicy, paperMode bool, logger *zap.Logger) *Router {
	return &Router{
		venues:    venues,
		lotSteps:  lotSteps,
		policy:    policy,
		paperMode: paperMode,
		paper:     NewPaperVenue(),
		logger:    logger.Named("order-router"),
	}
}

// Paper exposes the paper venue for status reporting and tests.
func (r *Router) Paper() *PaperVenue { return r.paper }

// PaperMode reports whether the router simulates execution.
func (r *Router) PaperMode() bool { return r.paperMode }

// Execute routes the order and records the outcome as a Trade. The returned
// error is non-nil exactly when the trade status is failed; the trade row is
// produced either way so the ledger keeps an audit record.
func (r *Router) Execute(ctx context.Context, a *models.Alert, size risk.SizeInfo) (*models.Trade, error) {
	trade := &models.Trade{
		TradeID: uuid.New().String(),
		AlertID: a.AlertID,
		Symbol:  a.Symbol,
		Side:    sideToOrderSide(a.Side),
		Entry:   a.Entry,
		Stop:    a.Stop,
		Targets: a.Targets,
		Status:  models.TradeStatusFailed,
	}

	kind := MapSymbol(a.Symbol)
	if kind == VenueUnknown {
		err := Terminalf("no venue matches symbol %q", a.Symbol)
		trade.Venue = string(VenueUnknown)
		trade.RawResponse = err.Error()
		return trade, err
	}
	trade.Venue = string(kind)

	units, err := risk.QuantizeDown(size.Units, r.lotStep(kind))
	if err != nil {
		err = Terminal(err)
		trade.RawResponse = err.Error()
		return trade, err
	}
	if units <= 0 {
		err = Terminalf("sized units %g quantize to zero for venue %s", size.Units, kind)
		trade.RawResponse = err.Error()
		return trade, err
	}
	trade.Units = units

	venue, fill, err := r.dispatch(ctx, kind, Order{
		ClientOrderID: clientOrderID(a.AlertID),
		Symbol:        a.Symbol,
		Side:          trade.Side,
		Entry:         a.Entry,
		Stop:          a.Stop,
		Units:         units,
	})
	trade.Venue = venue
	if err != nil {
		trade.RawResponse = err.Error()
		r.logger.Error("Order routing failed",
			zap.String("alert_id", a.AlertID),
			zap.String("symbol", a.Symbol),
			zap.String("venue", venue),
			zap.Error(err),
		)
		return trade, err
	}

	trade.VenueOrderID = &fill.VenueOrderID
	trade.RawResponse = fill.Raw
	if r.paperMode {
		trade.Status = models.TradeStatusPaperSimulated
	} else {
		trade.Status = models.TradeStatusSubmitted
	}

	r.logger.Info("Order routed",
		zap.String("alert_id", a.AlertID),
		zap.String("trade_id", trade.TradeID),
		zap.String("venue", venue),
		zap.String("status", trade.Status),
		zap.Float64("units", units),
	)
	return trade, nil
}

// dispatch runs the venue call under the retry policy.
func (r *Router) dispatch(ctx context.Context, kind VenueKind, order Order) (string, *Fill, error) {
	venue := r.venueFor(kind)
	if venue == nil {
		return string(kind), nil, Terminalf("venue %s is not configured", kind)
	}

	var fill *Fill
	err := Retry(ctx, r.policy, r.logger, func(ctx context.Context) error {
		var attemptErr error
		fill, attemptErr = venue.PlaceOrder(ctx, order)
		return attemptErr
	})
	if err != nil {
		return venue.Name(), nil, err
	}
	return venue.Name(), fill, nil
}

func (r *Router) venueFor(kind VenueKind) Venue {
	if r.paperMode {
		return r.paper
	}
	// Index symbols execute on the FX/CFD venue.
	if kind == VenueIndex {
		kind = VenueFX
	}
	return r.venues[kind]
}

func (r *Router) lotStep(kind VenueKind) string {
	if kind == VenueIndex {
		kind = VenueFX
	}
	if step, ok := r.lotSteps[kind]; ok && strings.TrimSpace(step) != "" {
		return step
	}
	return "0.00000001"
}

// clientOrderID derives the venue idempotency token from the alert id.
func clientOrderID(alertID string) string {
	return "tvab-" + strings.ReplaceAll(alertID, "-", "")
}

func sideToOrderSide(side string) string {
	if side == "short" {
		return OrderSideSell
	}
	return OrderSideBuy
}
