package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/services/fixtures"
)

func TestEngineMockScenarioBTCAndETH(t *testing.T) {
	sink := &memorySink{}
	pub, mem := newGuardedPublisher(sink)
	defer mem.Close()
	engine := newTestEngine(mockCollaborators(), pub, testEngineConfig())

	out := engine.Run(context.Background(), request("req-1", true, "BTC", "ETH"))
	require.Equal(t, models.StatusReady, out.Status)
	report := out.Report
	require.NotNil(t, report)

	assert.Equal(t, []string{"BTC", "ETH"}, report.Tokens)
	assert.Equal(t, models.Buy, report.Recommendations["BTC"])
	assert.Equal(t, models.InsufficientData, report.Recommendations["ETH"])

	btc := report.Signals["BTC"]
	require.NotNil(t, btc.Technical)
	require.NotNil(t, btc.Sentiment)
	assert.Equal(t, models.Bullish, btc.Technical.Trend)
	assert.Greater(t, btc.Sentiment.Polarity, 0.2)
	assert.Nil(t, report.Signals["ETH"].Technical)
	assert.Nil(t, report.Signals["ETH"].Sentiment)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, models.StageMarket, report.Errors[0].Stage)
	assert.Equal(t, "ETH", report.Errors[0].Token)
	assert.Equal(t, models.KindSourceUnavailable, report.Errors[0].Kind)

	assert.Equal(t, "Mock summary for BTC, ETH.", report.OverallSummary)
	assert.Equal(t, report.OverallSummary, out.FinalSummary)
	assert.Contains(t, out.Reply, "- BTC: BUY")
	assert.Contains(t, report.Market, "BTC")
	assert.NotContains(t, report.Market, "ETH")

	published := sink.outcomes()
	require.Len(t, published, 1)
	assert.Equal(t, "req-1", published[0].RequestID)
	assert.False(t, published[0].PublishedAt.IsZero())
}

func TestEngineMockScenarioSellAndHold(t *testing.T) {
	engine := newTestEngine(mockCollaborators(), &recordingPublisher{}, testEngineConfig())

	report, err := engine.Execute(context.Background(), request("req-2", true, "SOL", "DOGE"))
	require.NoError(t, err)
	assert.Equal(t, models.Sell, report.Recommendations["SOL"])
	assert.Equal(t, models.Hold, report.Recommendations["DOGE"])
	assert.Empty(t, report.Errors)
}

func TestEngineComprehensiveMode(t *testing.T) {
	engine := newTestEngine(mockCollaborators(), &recordingPublisher{}, testEngineConfig())
	req := request("req-3", true, "BTC", "SOL")
	req.AnalysisType = models.AnalysisComprehensive

	report, err := engine.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.Buy, report.Recommendations["BTC"])
	assert.Equal(t, models.Sell, report.Recommendations["SOL"])
	assert.Equal(t, "BTC fixture trend.", report.Signals["BTC"].Technical.Rationale)
	assert.InDelta(t, 0.7, report.Signals["BTC"].Sentiment.Polarity, 1e-9)
}

func TestEngineUsesLiveCollaboratorsOutsideMockMode(t *testing.T) {
	live := Collaborators{Market: failingMarket{}, News: failingNews{}, Inference: fixtures.NewInference()}
	engine := newTestEngine(live, &recordingPublisher{}, testEngineConfig())

	report, err := engine.Execute(context.Background(), request("req-4", false, "BTC", "SOL"))
	require.NoError(t, err)
	for _, tok := range report.Tokens {
		assert.Equal(t, models.InsufficientData, report.Recommendations[tok])
	}
	require.Len(t, report.Errors, 4)
	assert.Equal(t, []string{"market", "news", "market", "news"}, []string{
		report.Errors[0].Stage, report.Errors[1].Stage, report.Errors[2].Stage, report.Errors[3].Stage,
	})
	assert.Equal(t, models.KindRateLimited, report.Errors[0].Kind)
	assert.True(t, report.Errors[0].Retryable)
	assert.Equal(t, "BTC", report.Errors[0].Token)
	assert.Equal(t, "SOL", report.Errors[2].Token)
}

func TestEngineAggregationFailure(t *testing.T) {
	inf := &scriptedInference{summaryErr: models.Unavailable("gemini", errors.New("503"))}
	live := Collaborators{Market: fixtures.NewMarket(), News: fixtures.NewNews(), Inference: inf}
	pub := &recordingPublisher{}
	engine := newTestEngine(live, pub, testEngineConfig())

	out := engine.Run(context.Background(), request("req-5", false, "BTC"))
	assert.Equal(t, models.StatusError, out.Status)
	assert.Nil(t, out.Report)
	assert.Equal(t, models.KindAggregationFailure, out.ErrorKind)
	assert.True(t, out.IsRetryable())
	assert.Equal(t, int32(3), atomic.LoadInt32(&inf.summaryCalls))
	require.Len(t, pub.outcomes(), 1)
}

func TestEngineInvalidPromptNotRetried(t *testing.T) {
	inf := &scriptedInference{summaryErr: models.InvalidPrompt("gemini", errors.New("400"))}
	live := Collaborators{Market: fixtures.NewMarket(), News: fixtures.NewNews(), Inference: inf}
	engine := newTestEngine(live, &recordingPublisher{}, testEngineConfig())

	_, err := engine.Execute(context.Background(), request("req-6", false, "BTC"))
	assert.ErrorIs(t, err, models.ErrAggregationFailure)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inf.summaryCalls))
}

func TestEngineInitializationFailure(t *testing.T) {
	pub := &recordingPublisher{}
	engine := newTestEngine(mockCollaborators(), pub, testEngineConfig())

	out := engine.Run(context.Background(), request("req-7", true))
	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, models.KindValidation, out.ErrorKind)
	assert.False(t, out.IsRetryable())

	_, err := engine.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEngineBoundsTokenParallelism(t *testing.T) {
	market := &countingMarket{}
	live := Collaborators{Market: market, News: fixtures.NewNews(), Inference: fixtures.NewInference()}
	cfg := testEngineConfig()
	cfg.MaxParallelTokens = 2
	engine := newTestEngine(live, &recordingPublisher{}, cfg)

	report, err := engine.Execute(context.Background(), request("req-8", false, "BTC", "SOL", "ADA", "DOT", "XRP"))
	require.NoError(t, err)
	assert.Len(t, report.Recommendations, 5)
	assert.LessOrEqual(t, atomic.LoadInt32(&market.peak), int32(2))
}

func TestEngineDeterministicReports(t *testing.T) {
	engine := newTestEngine(mockCollaborators(), &recordingPublisher{}, testEngineConfig())
	a, err := engine.Execute(context.Background(), request("req-9", true, "BTC", "ETH", "SOL"))
	require.NoError(t, err)
	b, err := engine.Execute(context.Background(), request("req-9", true, "BTC", "ETH", "SOL"))
	require.NoError(t, err)
	assert.Equal(t, a.Recommendations, b.Recommendations)
	assert.Equal(t, a.Errors, b.Errors)
	assert.Equal(t, a.OverallSummary, b.OverallSummary)
}

func TestEngineMarketTimeoutMarksTokenUnavailable(t *testing.T) {
	live := Collaborators{Market: stalledMarket{}, News: fixtures.NewNews(), Inference: fixtures.NewInference()}
	cfg := testEngineConfig()
	cfg.MarketTimeout = 50 * time.Millisecond
	engine := newTestEngine(live, &recordingPublisher{}, cfg)

	start := time.Now()
	report, err := engine.Execute(context.Background(), request("req-10", false, "BTC"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.NotContains(t, report.Market, "BTC")
	assert.Nil(t, report.Signals["BTC"].Technical)
	assert.NotNil(t, report.Signals["BTC"].Sentiment)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, models.StageMarket, report.Errors[0].Stage)
	assert.Equal(t, "BTC", report.Errors[0].Token)
	assert.Equal(t, models.KindSourceUnavailable, report.Errors[0].Kind)
	assert.False(t, report.Errors[0].Retryable)
}

func TestEngineRetriesFailedPublish(t *testing.T) {
	sink := &memorySink{failures: 2}
	pub, mem := newGuardedPublisher(sink)
	defer mem.Close()
	engine := newTestEngine(mockCollaborators(), pub, testEngineConfig())

	out := engine.Run(context.Background(), request("req-11", true, "BTC"))
	assert.Equal(t, models.StatusReady, out.Status)
	assert.Equal(t, 3, sink.attempts())
	require.Len(t, sink.outcomes(), 1)
	assert.Equal(t, "req-11", sink.outcomes()[0].RequestID)
}

func TestEngineReleasesRequestWhenOutcomeUndeliverable(t *testing.T) {
	sink := &memorySink{fail: errors.New("broker down")}
	pub, mem := newGuardedPublisher(sink)
	defer mem.Close()
	engine := newTestEngine(mockCollaborators(), pub, testEngineConfig())

	ctx := context.Background()
	ok, err := mem.TryLock(ctx, seenKey("req-12"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	engine.Run(ctx, request("req-12", true, "BTC"))
	assert.Equal(t, 3, sink.attempts())
	assert.Empty(t, sink.outcomes())

	for _, key := range []string{seenKey("req-12"), publishedKey("req-12")} {
		exists, err := mem.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
}
