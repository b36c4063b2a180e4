package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradingview-alert-bot/internal/alert"
	"tradingview-alert-bot/internal/broker"
	"tradingview-alert-bot/internal/config"
	"tradingview-alert-bot/internal/pipeline"
	"tradingview-alert-bot/internal/store"
)

// SignatureHeader carries the HMAC-SHA256 of the raw request body, hex
// encoded, keyed with the shared webhook secret.
const SignatureHeader = "X-Signature"

// APIServer exposes the webhook, decision surface, and status endpoints.
type APIServer struct {
	server  *http.Server
	engine  *pipeline.Engine
	secret  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewAPIServer creates the HTTP surface for the pipeline engine.
func NewAPIServer(cfg *config.Server, secret string, engine *pipeline.Engine, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine:  engine,
		secret:  secret,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		logger:  logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/decision/confirm", s.decisionHandler(true))
	mux.HandleFunc("/decision/cancel", s.decisionHandler(false))
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *APIServer) Handler() http.Handler { return s.server.Handler }

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

// webhookHandler is the inbound alert delivery endpoint. Authentication and
// validation failures are rejected at the boundary and never create an alert
// record; store faults answer 503 so the source redelivers.
func (s *APIServer) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !s.verifySignature(body, r.Header.Get(SignatureHeader)) {
		s.logger.Warn("Webhook signature mismatch", zap.String("remote", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	p, err := alert.Parse(body)
	if err != nil {
		s.logger.Warn("Webhook payload rejected", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.engine.Submit(body, p)
	if err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			s.logger.Error("Alert store unavailable, asking source to redeliver", zap.Error(err))
			http.Error(w, "store unavailable, retry later", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("Alert admission failed", zap.Error(err))
		http.Error(w, "admission failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type decisionRequest struct {
	AlertID string `json:"alert_id"`
}

type decisionResponse struct {
	AlertID    string `json:"alert_id"`
	Resolution string `json:"resolution"`
}

// decisionHandler answers the confirm/cancel callbacks idempotently: a
// duplicate press observes the settled state instead of acting twice.
func (s *APIServer) decisionHandler(confirm bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req decisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AlertID == "" {
			http.Error(w, "alert_id is required", http.StatusBadRequest)
			return
		}

		resolution := s.engine.Decide(req.AlertID, confirm)
		status := http.StatusOK
		if resolution == broker.ResolutionUnknownAlert {
			status = http.StatusNotFound
		}
		writeJSON(w, status, decisionResponse{
			AlertID:    req.AlertID,
			Resolution: string(resolution),
		})
	}
}

// statusHandler reports operating mode, today's realized P&L and the
// configured drawdown ceiling.
func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	mode := "live"
	if s.engine.Router().PaperMode() {
		mode = "paper"
	}

	pnl, err := s.engine.Ledger().DailyRealizedPnL(r.Context(), s.engine.Ledger().Today())
	if err != nil {
		s.logger.Error("Failed to read daily ledger for status", zap.Error(err))
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}

	cfg := s.engine.Config()
	status := struct {
		Mode             string  `json:"mode"`
		Day              string  `json:"day"`
		DailyRealizedPnL float64 `json:"daily_realized_pnl"`
		DrawdownCeiling  float64 `json:"drawdown_ceiling"`
		StartTime        string  `json:"start_time"`
		Uptime           string  `json:"uptime"`
	}{
		Mode:             mode,
		Day:              s.engine.Ledger().Today(),
		DailyRealizedPnL: pnl,
		DrawdownCeiling:  cfg.Trading.Equity * cfg.Trading.DrawdownPercent / 100,
		StartTime:        s.engine.StartTime.Format(time.RFC3339),
		Uptime:           time.Since(s.engine.StartTime).String(),
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// verifySignature checks the body's keyed hash in constant time.
func (s *APIServer) verifySignature(body []byte, got string) bool {
	if got == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(got))
}

// Sign computes the signature a source must attach for the given body.
// Exported for tests and delivery tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
