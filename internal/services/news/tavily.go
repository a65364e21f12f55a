package news

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"TokenPulse/internal/domain/models"
	svcmetrics "TokenPulse/internal/service/metrics"
	"TokenPulse/internal/service/ratelimit"
	xhttp "TokenPulse/pkg/http"
	"TokenPulse/pkg/util"
)

const (
	tavilyProvider   = "tavily"
	DefaultTavilyURL = "https://api.tavily.com/search"
)

type Tavily struct {
	endpoint    string
	apiKey      string
	maxArticles int
	http        *xhttp.Client
	limiter     *ratelimit.Limiter
}

func NewTavily(endpoint, apiKey string, maxArticles int, hc *xhttp.Client, limiter *ratelimit.Limiter) *Tavily {
	if endpoint == "" {
		endpoint = DefaultTavilyURL
	}
	if maxArticles <= 0 {
		maxArticles = defaultMaxArticle
	}
	if hc == nil {
		hc = xhttp.NewClient(xhttp.WithTimeout(15 * time.Second))
	}
	return &Tavily{endpoint: endpoint, apiKey: apiKey, maxArticles: maxArticles, http: hc, limiter: limiter}
}

type tavilyRequest struct {
	Query      string `json:"query"`
	Topic      string `json:"topic"`
	Days       int    `json:"days"`
	MaxResults int    `json:"max_results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	PublishedDate string  `json:"published_date"`
	Score         float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

func (t *Tavily) FetchArticles(ctx context.Context, token string) (articles []models.Article, err error) {
	start := time.Now()
	defer func() {
		kind, _ := models.Classify(err)
		svcmetrics.Observe(tavilyProvider, "search", start, kind)
	}()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, tavilyProvider); err != nil {
			return nil, models.Unavailable(tavilyProvider, err)
		}
	}

	var resp tavilyResponse
	err = t.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     t.endpoint,
		Headers: map[string]string{"Authorization": "Bearer " + t.apiKey},
		Body: tavilyRequest{
			Query:      strings.ToUpper(token) + " crypto",
			Topic:      "news",
			Days:       7,
			MaxResults: t.maxArticles,
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == 429 {
			return nil, models.RateLimited(tavilyProvider, err)
		}
		return nil, models.Unavailable(tavilyProvider, err)
	}

	articles = make([]models.Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		a := models.Article{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Summary: truncate(r.Content, 400),
		}
		if u, perr := url.Parse(r.URL); perr == nil {
			a.Source = strings.TrimPrefix(u.Hostname(), "www.")
		}
		if ts, ok := util.ParseTime(r.PublishedDate); ok {
			a.PublishedAt = ts.UTC()
		}
		articles = append(articles, a)
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	if len(articles) > t.maxArticles {
		articles = articles[:t.maxArticles]
	}
	return articles, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
