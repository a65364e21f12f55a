// Package market implements repository.MarketData against the Binance public REST API.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	svcmetrics "TokenPulse/internal/service/metrics"
	"TokenPulse/internal/service/ratelimit"
	xhttp "TokenPulse/pkg/http"
)

const (
	providerName   = "binance"
	DefaultBaseURL = "https://api.binance.com"
	// Binance error code for an unknown trading pair.
	codeInvalidSymbol = -1121
)

type BinanceClient struct {
	baseURL    string
	quoteAsset string
	limit      int
	http       *xhttp.Client
	limiter    *ratelimit.Limiter
}

type Option func(*BinanceClient)

func WithBaseURL(u string) Option {
	return func(c *BinanceClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithQuoteAsset(q string) Option {
	return func(c *BinanceClient) {
		if q != "" {
			c.quoteAsset = strings.ToUpper(q)
		}
	}
}

// WithLimit sets how many candles are requested per call (Binance caps it at 1000).
func WithLimit(n int) Option {
	return func(c *BinanceClient) {
		if n > 0 && n <= 1000 {
			c.limit = n
		}
	}
}

func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *BinanceClient) { c.limiter = l }
}

func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *BinanceClient) { c.http = hc }
}

func NewBinanceClient(opts ...Option) *BinanceClient {
	c := &BinanceClient{
		baseURL:    DefaultBaseURL,
		quoteAsset: "USDT",
		limit:      100,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}
	return c
}

// Symbol returns the exchange pair for token.
func (c *BinanceClient) Symbol(token string) string {
	return strings.ToUpper(token) + c.quoteAsset
}

// FetchCandles returns candles oldest first.
func (c *BinanceClient) FetchCandles(ctx context.Context, token string, tf repository.Timeframe) (candles []models.Candle, err error) {
	start := time.Now()
	defer func() {
		kind, _ := models.Classify(err)
		svcmetrics.Observe(providerName, "klines", start, kind)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, providerName); err != nil {
			return nil, models.Unavailable(providerName, err)
		}
	}

	var raw [][]json.RawMessage
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {c.Symbol(token)},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(c.limit)},
		},
	}, &raw)
	if err != nil {
		return nil, classify(err)
	}

	candles = make([]models.Candle, 0, len(raw))
	for i, row := range raw {
		cd, perr := parseKline(row)
		if perr != nil {
			return nil, models.Unavailable(providerName, fmt.Errorf("kline %d: %w", i, perr))
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func classify(err error) error {
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return models.Unavailable(providerName, err)
	}
	switch se.Code {
	case 429, 418:
		return models.RateLimited(providerName, err)
	case 400:
		var ae apiError
		if json.Unmarshal(se.Body, &ae) == nil && ae.Code == codeInvalidSymbol {
			return models.InvalidSymbol(providerName, errors.New(ae.Msg))
		}
	}
	return models.Unavailable(providerName, err)
}

// parseKline reads [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("short row: %d fields", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = d.InexactFloat64()
	}
	return models.Candle{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}
