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

// EquitiesVenue places orders against an Alpaca-style brokerage API. The
// order's ClientOrderID is forwarded as client_order_id, which the API
// dedups, so retried submissions cannot fill twice.
type EquitiesVenue struct {
	client  *resty.Client
	apiKey  string
	secret  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ Venue = (*EquitiesVenue)(nil)

// NewEquitiesVenue creates an equities venue client from configuration.
func NewEquitiesVenue(cfg *config.Venue, logger *zap.Logger) *EquitiesVenue {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &EquitiesVenue{
		client:  resty.New().SetBaseURL(cfg.BaseURL),
		apiKey:  cfg.ApiKey,
		secret:  cfg.SecretKey,
		logger:  logger.Named("equities-venue"),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (v *EquitiesVenue) Name() string { return "equities" }

type equitiesOrderRequest struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	TimeInForce   string  `json:"time_in_force"`
	ClientOrderID string  `json:"client_order_id"`
}

type equitiesOrderResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FilledAvgPrice string `json:"filled_avg_price"`
}

// PlaceOrder submits a day market order.
func (v *EquitiesVenue) PlaceOrder(ctx context.Context, order Order) (*Fill, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, Transient(fmt.Errorf("rate limiter wait failed: %w", err))
	}

	side := "buy"
	if order.Side == OrderSideSell {
		side = "sell"
	}

	body := equitiesOrderRequest{
		Symbol:        order.Symbol,
		Qty:           order.Units,
		Side:          side,
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: order.ClientOrderID,
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("APCA-API-KEY-ID", v.apiKey).
		SetHeader("APCA-API-SECRET-KEY", v.secret).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&equitiesOrderResponse{}).
		Post("/v2/orders")
	if err != nil {
		return nil, Transient(fmt.Errorf("order request failed: %w", err))
	}
	if resp.IsError() {
		return nil, classifyStatus(resp.StatusCode(), resp.String())
	}

	result := resp.Result().(*equitiesOrderResponse)

	v.logger.Info("Order accepted by equities venue",
		zap.String("symbol", order.Symbol),
		zap.String("order_id", result.ID),
	)

	return &Fill{
		VenueOrderID: result.ID,
		Units:        order.Units,
		Raw:          resp.String(),
		CreateTime:   time.Now().UTC(),
	}, nil
}
