package router

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradingview-alert-bot/internal/config"
)

// FXVenue places orders against a broker-style JSON API covering FX pairs
// and index CFDs. The API has no client-supplied idempotency token, so a
// retry after a lost success response can in principle fill twice; the
// router bounds this to one attempt in flight at a time.
type FXVenue struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
	name    string
}

var _ Venue = (*FXVenue)(nil)

// NewFXVenue creates an FX/CFD venue client from configuration.
func NewFXVenue(cfg *config.Venue, logger *zap.Logger) *FXVenue {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &FXVenue{
		client:  resty.New().SetBaseURL(cfg.BaseURL),
		apiKey:  cfg.ApiKey,
		logger:  logger.Named("fx-venue"),
		limiter: rate.NewLimiter(limit, burst),
		name:    "fx",
	}
}

func (v *FXVenue) Name() string { return v.name }

type fxOrderRequest struct {
	Instrument string  `json:"instrument"`
	Side       string  `json:"side"`
	Units      float64 `json:"units"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
}

type fxOrderResponse struct {
	OrderID string  `json:"order_id"`
	Price   float64 `json:"price"`
	Units   float64 `json:"units"`
	State   string  `json:"state"`
}

// PlaceOrder submits a market order with an attached stop.
func (v *FXVenue) PlaceOrder(ctx context.Context, order Order) (*Fill, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, Transient(fmt.Errorf("rate limiter wait failed: %w", err))
	}

	body := fxOrderRequest{
		Instrument: order.Symbol,
		Side:       order.Side,
		Units:      order.Units,
		StopLoss:   order.Stop,
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+v.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&fxOrderResponse{}).
		Post("/v1/orders")
	if err != nil {
		return nil, Transient(fmt.Errorf("order request failed: %w", err))
	}
	if resp.IsError() {
		return nil, classifyStatus(resp.StatusCode(), resp.String())
	}

	result := resp.Result().(*fxOrderResponse)

	v.logger.Info("Order accepted by fx venue",
		zap.String("instrument", order.Symbol),
		zap.String("order_id", result.OrderID),
	)

	return &Fill{
		VenueOrderID: result.OrderID,
		Price:        result.Price,
		Units:        result.Units,
		Raw:          resp.String(),
		CreateTime:   time.Now().UTC(),
	}, nil
}
