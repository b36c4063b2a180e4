package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupCryptoVenue creates a CryptoVenue pointed at a test server.
func setupCryptoVenue(handler http.Handler) (*CryptoVenue, *httptest.Server) {
	server := httptest.NewServer(handler)
	v := &CryptoVenue{
		client:    resty.New().SetBaseURL(server.URL),
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		logger:    zap.NewNop(),
		limiter:   rate.NewLimiter(rate.Inf, 1), // allow all requests in tests
	}
	return v, server
}

func testOrder() Order {
	return Order{
		ClientOrderID: "tvab-abc123",
		Symbol:        "BTCUSDT",
		Side:          OrderSideBuy,
		Entry:         64000,
		Stop:          62500,
		Units:         0.5,
	}
}

func TestCryptoVenue_PlaceOrder_Success(t *testing.T) {
	var gotBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, "test_api_key", r.Header.Get("X-MBX-APIKEY"))

		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Encode()
		assert.Equal(t, "tvab-abc123", r.PostForm.Get("newClientOrderId"))
		assert.NotEmpty(t, r.PostForm.Get("signature"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":12345,"clientOrderId":"tvab-abc123","transactTime":1710000000000,"price":"64000","executedQty":"0.5","status":"FILLED"}`))
	})

	v, server := setupCryptoVenue(handler)
	defer server.Close()

	fill, err := v.PlaceOrder(context.Background(), testOrder())

	require.NoError(t, err)
	assert.Equal(t, "12345", fill.VenueOrderID)
	assert.Equal(t, 0.5, fill.Units)
	assert.NotEmpty(t, gotBody)
}

func TestCryptoVenue_PlaceOrder_RateLimitIsTransient(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	})

	v, server := setupCryptoVenue(handler)
	defer server.Close()

	_, err := v.PlaceOrder(context.Background(), testOrder())

	assert.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestCryptoVenue_PlaceOrder_ServerErrorIsTransient(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	v, server := setupCryptoVenue(handler)
	defer server.Close()

	_, err := v.PlaceOrder(context.Background(), testOrder())

	assert.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestCryptoVenue_PlaceOrder_RejectionIsTerminal(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	v, server := setupCryptoVenue(handler)
	defer server.Close()

	_, err := v.PlaceOrder(context.Background(), testOrder())

	assert.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "Invalid symbol")
}

func TestCryptoVenue_PlaceOrder_HangingVenueCutByAttemptTimeout(t *testing.T) {
	hanging := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Accept the connection and never answer. Drain the body so the
		// server notices the client disconnect and cancels r.Context();
		// otherwise the handler wedges and server.Close never returns.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	v, server := setupCryptoVenue(hanging)
	defer server.Close()

	policy := fastPolicy()
	policy.MaxAttempts = 2
	policy.AttemptTimeout = 50 * time.Millisecond

	attempts := 0
	start := time.Now()
	err := Retry(context.Background(), policy, zap.NewNop(), func(ctx context.Context) error {
		attempts++
		_, attemptErr := v.PlaceOrder(ctx, testOrder())
		return attemptErr
	})

	assert.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, attempts, "each hung attempt must be cut and retried")
	assert.Less(t, time.Since(start), 2*time.Second, "the call must not block past the attempt deadlines")
}

func TestCryptoVenue_PlaceOrder_NetworkErrorIsTransient(t *testing.T) {
	v, server := setupCryptoVenue(http.NotFoundHandler())
	server.Close() // connection refused from here on

	_, err := v.PlaceOrder(context.Background(), testOrder())

	assert.Error(t, err)
	assert.True(t, IsTransient(err))
}
