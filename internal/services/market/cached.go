package market

import (
	"context"
	"errors"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/pkg/cache"
	applogger "TokenPulse/pkg/logger"
)

// Cached memoizes candle fetches for a short TTL so concurrent requests
// for the same token and timeframe share one upstream call per window.
type Cached struct {
	inner repository.MarketData
	cache cache.Service
	ttl   time.Duration
	log   *applogger.Logger
}

func NewCached(inner repository.MarketData, c cache.Service, ttl time.Duration, log *applogger.Logger) repository.MarketData {
	if c == nil || ttl <= 0 {
		return inner
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Cached{inner: inner, cache: c, ttl: ttl, log: log}
}

func (c *Cached) FetchCandles(ctx context.Context, token string, tf repository.Timeframe) ([]models.Candle, error) {
	key := cache.Key("market", "candles", token, string(tf))

	var candles []models.Candle
	err := c.cache.Get(ctx, key, &candles)
	if err == nil && len(candles) > 0 {
		return candles, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn("candle cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	candles, err = c.inner.FetchCandles(ctx, token, tf)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, candles, c.ttl); err != nil {
		c.log.Warn("candle cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return candles, nil
}
