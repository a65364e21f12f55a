package fixtures

import (
	"context"
	"fmt"
	"time"

	"TokenPulse/internal/domain/models"
)

var fixtureHeadlines = map[string][]string{
	"BTC": {
		"Bitcoin rallies as ETF inflows surge",
		"BTC climbs to record high on institutional adoption",
		"Analysts turn bullish after Bitcoin breakout",
	},
	"SOL": {
		"Solana slumps after network outage",
		"SOL plunges as liquidations mount",
		"Bearish mood deepens as Solana declines",
	},
}

// News serves positive BTC headlines, negative SOL headlines, no ETH
// headlines, and neutral headlines for any other token.
type News struct{}

func NewNews() *News { return &News{} }

func (News) FetchArticles(ctx context.Context, token string) ([]models.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.Unavailable(source, err)
	}
	if token == "ETH" {
		return []models.Article{}, nil
	}
	titles, ok := fixtureHeadlines[token]
	if !ok {
		titles = []string{
			fmt.Sprintf("%s trades in a narrow range", token),
			fmt.Sprintf("%s volume steady ahead of the weekly close", token),
		}
	}
	out := make([]models.Article, len(titles))
	for i, t := range titles {
		out[i] = models.Article{
			Title:       t,
			Source:      "fixture.news",
			URL:         fmt.Sprintf("https://fixture.news/%s/%d", token, i),
			PublishedAt: Epoch.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out, nil
}
