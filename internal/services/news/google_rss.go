// Package news implements repository.NewsSource over Google News RSS and Tavily search.
package news

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"TokenPulse/internal/domain/models"
	svcmetrics "TokenPulse/internal/service/metrics"
	"TokenPulse/internal/service/ratelimit"
)

const (
	rssProvider       = "google_news"
	DefaultRSSURL     = "https://news.google.com/rss/search"
	defaultMaxArticle = 10
)

// GoogleRSS searches Google News for "<TOKEN> crypto".
type GoogleRSS struct {
	baseURL     string
	maxArticles int
	limiter     *ratelimit.Limiter
	parser      *gofeed.Parser
}

func NewGoogleRSS(baseURL string, maxArticles int, limiter *ratelimit.Limiter) *GoogleRSS {
	if baseURL == "" {
		baseURL = DefaultRSSURL
	}
	if maxArticles <= 0 {
		maxArticles = defaultMaxArticle
	}
	return &GoogleRSS{
		baseURL:     baseURL,
		maxArticles: maxArticles,
		limiter:     limiter,
		parser:      gofeed.NewParser(),
	}
}

// SearchURL builds the feed URL for token.
func (g *GoogleRSS) SearchURL(token string) string {
	q := url.Values{}
	q.Set("q", strings.ToUpper(token)+" crypto")
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")
	return g.baseURL + "?" + q.Encode()
}

// FetchArticles returns the newest articles first, capped at maxArticles.
func (g *GoogleRSS) FetchArticles(ctx context.Context, token string) (articles []models.Article, err error) {
	start := time.Now()
	defer func() {
		kind, _ := models.Classify(err)
		svcmetrics.Observe(rssProvider, "search", start, kind)
	}()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, rssProvider); err != nil {
			return nil, models.Unavailable(rssProvider, err)
		}
	}

	feed, err := g.parser.ParseURLWithContext(g.SearchURL(token), ctx)
	if err != nil {
		var he gofeed.HTTPError
		if errors.As(err, &he) && he.StatusCode == 429 {
			return nil, models.RateLimited(rssProvider, err)
		}
		return nil, models.Unavailable(rssProvider, err)
	}

	items := feed.Items
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedParsed, items[j].PublishedParsed
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})

	articles = make([]models.Article, 0, min(len(items), g.maxArticles))
	for _, it := range items {
		if len(articles) >= g.maxArticles {
			break
		}
		title, source := splitSource(strings.TrimSpace(it.Title))
		if title == "" {
			continue
		}
		a := models.Article{Title: title, Source: source, URL: it.Link}
		if it.PublishedParsed != nil {
			a.PublishedAt = it.PublishedParsed.UTC()
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// splitSource splits Google's "Headline - Publisher" titles.
func splitSource(title string) (string, string) {
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}
