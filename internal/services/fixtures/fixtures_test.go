package fixtures

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
)

func TestMarketFixtures(t *testing.T) {
	m := NewMarket()
	ctx := context.Background()

	btc, err := m.FetchCandles(ctx, "BTC", repository.TF1d)
	require.NoError(t, err)
	require.Len(t, btc, candleCount)
	assert.Greater(t, btc[len(btc)-1].Close, btc[0].Close)

	sol, err := m.FetchCandles(ctx, "SOL", repository.TF1h)
	require.NoError(t, err)
	assert.Less(t, sol[len(sol)-1].Close, sol[0].Close)
	assert.Greater(t, sol[len(sol)-1].Close, 0.0)
	assert.Equal(t, Epoch.Add(59*repository.TF1h.Duration()), sol[59].OpenTime)

	_, err = m.FetchCandles(ctx, "ETH", repository.TF1d)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)

	a, err := m.FetchCandles(ctx, "DOGE", repository.TF1d)
	require.NoError(t, err)
	b, _ := m.FetchCandles(ctx, "DOGE", repository.TF1d)
	assert.Equal(t, a, b)
}

func TestNewsFixtures(t *testing.T) {
	n := NewNews()
	eth, err := n.FetchArticles(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Empty(t, eth)

	btc, err := n.FetchArticles(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Len(t, btc, 3)
}

func TestInferenceFixtures(t *testing.T) {
	inf := NewInference()
	ctx := context.Background()

	out, err := inf.Generate(ctx, "p", models.PromptContext{Task: models.TaskTechnicalAnalysis, Token: "SOL"})
	require.NoError(t, err)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "bearish", v["trend"])

	out, err = inf.Generate(ctx, "p", models.PromptContext{Task: models.TaskSummary, Tokens: []string{"BTC", "ETH"}})
	require.NoError(t, err)
	assert.Equal(t, "Mock summary for BTC, ETH.", out)

	_, err = inf.Generate(ctx, "p", models.PromptContext{Task: "nope"})
	assert.ErrorIs(t, err, models.ErrInvalidPrompt)
}
