package news

import (
	"context"
	"errors"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/pkg/cache"
	applogger "TokenPulse/pkg/logger"
)

// Cached keeps a token's article list for ttl. Empty lists are cached too,
// quiet tokens would otherwise hit the provider on every request.
type Cached struct {
	inner repository.NewsSource
	cache cache.Service
	ttl   time.Duration
	log   *applogger.Logger
}

func NewCached(inner repository.NewsSource, c cache.Service, ttl time.Duration, log *applogger.Logger) repository.NewsSource {
	if c == nil || ttl <= 0 {
		return inner
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Cached{inner: inner, cache: c, ttl: ttl, log: log}
}

func (c *Cached) FetchArticles(ctx context.Context, token string) ([]models.Article, error) {
	key := cache.Key("news", "articles", token)

	var articles []models.Article
	err := c.cache.Get(ctx, key, &articles)
	if err == nil {
		return articles, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn("news cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	articles, err = c.inner.FetchArticles(ctx, token)
	if err != nil {
		return nil, err
	}
	if articles == nil {
		articles = []models.Article{}
	}
	if err := c.cache.Set(ctx, key, articles, c.ttl); err != nil {
		c.log.Warn("news cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return articles, nil
}
