package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/pkg/cache"
)

const klines = `[
 [1704067200000,"42000.10","42500.00","41800.00","42300.55","1234.5",1704153599999,"0",10,"0","0","0"],
 [1704153600000,"42300.55","43000.00","42100.00","42900.00","999.25",1704239999999,"0",12,"0","0","0"]
]`

func TestBinanceFetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "4h", r.URL.Query().Get("interval"))
		assert.Equal(t, "60", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(klines))
	}))
	defer srv.Close()

	c := NewBinanceClient(WithBaseURL(srv.URL), WithLimit(60))
	candles, err := c.FetchCandles(context.Background(), "BTC", repository.TF4h)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), candles[0].OpenTime)
	assert.InDelta(t, 42300.55, candles[0].Close, 1e-9)
	assert.InDelta(t, 999.25, candles[1].Volume, 1e-9)
}

func TestBinanceErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		not    error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests"}`, models.ErrRateLimited, nil},
		{"banned", http.StatusTeapot, `{"code":-1003,"msg":"banned"}`, models.ErrRateLimited, nil},
		{"invalid symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, models.ErrInvalidSymbol, models.ErrRateLimited},
		{"other bad request", http.StatusBadRequest, `{"code":-1100,"msg":"Illegal characters"}`, models.ErrSourceUnavailable, models.ErrInvalidSymbol},
		{"server error", http.StatusBadGateway, `oops`, models.ErrSourceUnavailable, models.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewBinanceClient(WithBaseURL(srv.URL)).FetchCandles(context.Background(), "XYZ", repository.TF1d)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrSourceUnavailable)
			if tt.not != nil {
				assert.NotErrorIs(t, err, tt.not)
			}
		})
	}
}

func TestBinanceMalformedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[1704067200000,"abc","1","1","1","1"]]`))
	}))
	defer srv.Close()

	_, err := NewBinanceClient(WithBaseURL(srv.URL)).FetchCandles(context.Background(), "BTC", repository.TF1d)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}

func TestCachedSharesUpstreamCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(klines))
	}))
	defer srv.Close()

	mem := cache.NewMemoryCache()
	defer mem.Close()
	md := NewCached(NewBinanceClient(WithBaseURL(srv.URL)), mem, time.Minute, nil)

	for i := 0; i < 3; i++ {
		candles, err := md.FetchCandles(context.Background(), "BTC", repository.TF1d)
		require.NoError(t, err)
		assert.Len(t, candles, 2)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
