package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradingview-alert-bot/internal/broker"
	"tradingview-alert-bot/internal/config"
	"tradingview-alert-bot/internal/ledger"
	"tradingview-alert-bot/internal/models"
	"tradingview-alert-bot/internal/notify"
	"tradingview-alert-bot/internal/pipeline"
	"tradingview-alert-bot/internal/risk"
	"tradingview-alert-bot/internal/router"
	"tradingview-alert-bot/internal/store"
)

const testSecret = "test-webhook-secret"

func setupServer(t *testing.T) (*httptest.Server, *pipeline.Engine) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Trade{}, &models.DailyLedgerEntry{}))

	cfg := &config.Config{
		Server: config.Server{Port: 0, RateLimit: 1000, RateLimitBurst: 1000},
		Trading: config.Trading{
			Equity:          100000,
			RiskPercent:     3,
			DrawdownPercent: 5,
			PaperMode:       true,
		},
	}

	log := zap.NewNop()
	st := store.NewMemoryStore()
	led := ledger.NewLedger(db)
	brk := broker.NewBroker(5*time.Second, log)
	policy := router.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 4 * time.Millisecond}
	rtr := router.NewRouter(nil, nil, policy, true, log)

	engine := pipeline.NewEngine(log, cfg, st, led, risk.NewGate(), brk, rtr, notify.NewLogNotifier(log))
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	t.Cleanup(cancel)

	api := NewAPIServer(&cfg.Server, testSecret, engine, log)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	return ts, engine
}

func postWebhook(t *testing.T, ts *httptest.Server, body, signature string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/webhook", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func validAlertBody() string {
	return `{"symbol":"BTCUSDT","timeframe":"4h","side":"long","entry":64000,"stop":62500,"targets":[66000]}`
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	ts, _ := setupServer(t)

	resp := postWebhook(t, ts, validAlertBody(), "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	ts, _ := setupServer(t)

	resp := postWebhook(t, ts, validAlertBody(), "deadbeef")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_MalformedPayloadRejected(t *testing.T) {
	ts, _ := setupServer(t)
	body := `{"symbol":"BTCUSDT"}`

	resp := postWebhook(t, ts, body, Sign(testSecret, []byte(body)))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_ValidAlertAdmitted(t *testing.T) {
	ts, _ := setupServer(t)
	body := validAlertBody()

	resp := postWebhook(t, ts, body, Sign(testSecret, []byte(body)))
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result pipeline.SubmitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotEmpty(t, result.AlertID)
	assert.False(t, result.Duplicate)
}

func TestWebhook_RedeliveryCollapses(t *testing.T) {
	ts, _ := setupServer(t)
	body := validAlertBody()
	sig := Sign(testSecret, []byte(body))

	resp1 := postWebhook(t, ts, body, sig)
	defer resp1.Body.Close()
	var first pipeline.SubmitResult
	require.NoError(t, json.NewDecoder(resp1.Body).Decode(&first))

	resp2 := postWebhook(t, ts, body, sig)
	defer resp2.Body.Close()
	var second pipeline.SubmitResult
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&second))

	assert.Equal(t, first.AlertID, second.AlertID)
	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
}

func postDecision(t *testing.T, ts *httptest.Server, action, alertID string) *http.Response {
	body := fmt.Sprintf(`{"alert_id":%q}`, alertID)
	resp, err := http.Post(ts.URL+"/decision/"+action, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func TestDecision_ConfirmIsIdempotent(t *testing.T) {
	ts, _ := setupServer(t)
	body := validAlertBody()

	resp := postWebhook(t, ts, body, Sign(testSecret, []byte(body)))
	defer resp.Body.Close()
	var submitted pipeline.SubmitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))

	decide := func() string {
		body := fmt.Sprintf(`{"alert_id":%q}`, submitted.AlertID)
		r, err := http.Post(ts.URL+"/decision/confirm", "application/json", bytes.NewBufferString(body))
		if err != nil {
			return ""
		}
		defer r.Body.Close()
		var d struct {
			Resolution string `json:"resolution"`
		}
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			return ""
		}
		return d.Resolution
	}

	// Give the pipeline goroutine time to reach the decision stage.
	require.Eventually(t, func() bool {
		return decide() == string(broker.ResolutionAccepted)
	}, 3*time.Second, 10*time.Millisecond)

	// A duplicate press settles nothing and reports the decided state.
	require.Eventually(t, func() bool {
		return decide() == string(broker.ResolutionAlreadyDecided)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestDecision_UnknownAlert(t *testing.T) {
	ts, _ := setupServer(t)

	resp := postDecision(t, ts, "cancel", "no-such-alert")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatus_ReportsModeAndLedger(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Mode             string  `json:"mode"`
		DailyRealizedPnL float64 `json:"daily_realized_pnl"`
		DrawdownCeiling  float64 `json:"drawdown_ceiling"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "paper", status.Mode)
	assert.InDelta(t, 5000, status.DrawdownCeiling, 1e-9)
}

func TestHealth(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
