package router

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradingview-alert-bot/internal/config"
)

const recvWindow = "5000" // how long a signed request stays valid, in ms

// CryptoVenue places signed market orders against a Binance-style spot API.
// Each call is a single attempt; the router owns the retry schedule.
type CryptoVenue struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

var _ Venue = (*CryptoVenue)(nil)

// NewCryptoVenue creates a crypto venue client from configuration.
func NewCryptoVenue(cfg *config.Venue, logger *zap.Logger) *CryptoVenue {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &CryptoVenue{
		client:    resty.New().SetBaseURL(cfg.BaseURL),
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger.Named("crypto-venue"),
		limiter:   rate.NewLimiter(limit, burst),
	}
}

func (v *CryptoVenue) Name() string { return "crypto" }

// sign creates a HMAC-SHA256 signature for the request parameters.
func (v *CryptoVenue) sign(data string) string {
	h := hmac.New(sha256.New, []byte(v.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// orderResponse is the venue's answer to a new order.
type orderResponse struct {
	Symbol           string `json:"symbol"`
	OrderID          int64  `json:"orderId"`
	ClientOrderID    string `json:"clientOrderId"`
	TransactTime     int64  `json:"transactTime"`
	Price            string `json:"price"`
	ExecutedQuantity string `json:"executedQty"`
	Status           string `json:"status"`
}

// PlaceOrder submits a market order. The order's ClientOrderID is sent as
// newClientOrderId so the venue dedups a retried submission whose first
// response was lost.
func (v *CryptoVenue) PlaceOrder(ctx context.Context, order Order) (*Fill, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, Transient(fmt.Errorf("rate limiter wait failed: %w", err))
	}

	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", order.Side)
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(order.Units, 'f', -1, 64))
	params.Set("newClientOrderId", order.ClientOrderID)
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)

	queryString := params.Encode()
	params.Set("signature", v.sign(queryString))

	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", v.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(params.Encode()).
		SetResult(&orderResponse{}).
		Post("/order")
	if err != nil {
		return nil, Transient(fmt.Errorf("order request failed: %w", err))
	}
	if resp.IsError() {
		return nil, classifyStatus(resp.StatusCode(), resp.String())
	}

	result := resp.Result().(*orderResponse)
	price, _ := strconv.ParseFloat(result.Price, 64)
	units, _ := strconv.ParseFloat(result.ExecutedQuantity, 64)

	v.logger.Info("Order accepted by crypto venue",
		zap.String("symbol", order.Symbol),
		zap.Int64("order_id", result.OrderID),
	)

	return &Fill{
		VenueOrderID: strconv.FormatInt(result.OrderID, 10),
		Price:        price,
		Units:        units,
		Raw:          resp.String(),
		CreateTime:   time.UnixMilli(result.TransactTime).UTC(),
	}, nil
}

// classifyStatus sorts a venue HTTP error into the retry taxonomy. Rate
// limits and server errors are transient; everything else is terminal.
func classifyStatus(status int, body string) error {
	if status == http.StatusTooManyRequests || status == 418 || status >= 500 {
		return Transient(fmt.Errorf("venue returned status %d: %s", status, body))
	}
	return Terminalf("venue rejected order with status %d: %s", status, body)
}
