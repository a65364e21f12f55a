// Package analysis holds the per-token stage nodes and the aggregation helpers.
// Nodes only read their own token's data and never touch shared state.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
	"TokenPulse/internal/services/indicators"
)

// MinCandles is the shortest series the technical node will score (MACD 26 + signal 9).
const MinCandles = 35

var ErrInsufficientCandles = errors.New("insufficient candles")

// TechnicalNode implements service.TechnicalAnalyzer.
type TechnicalNode struct {
	// Timeframe-derived annualisation for the volatility indicator.
	barsPerYear func(timeframe string) float64
}

func NewTechnicalNode() *TechnicalNode {
	return &TechnicalNode{barsPerYear: func(tf string) float64 {
		return repository.NormalizeTimeframe(tf).BarsPerYear()
	}}
}

// Analyze scores the snapshot with indicator votes. Quick mode asks the model for a short
// rationale; comprehensive mode asks it for the whole signal as JSON. Inference failures keep
// the rule-based signal and return the error alongside it.
func (n *TechnicalNode) Analyze(ctx context.Context, inf repository.Inference, mode models.AnalysisType, snap *models.MarketSnapshot) (*models.TechnicalSignal, error) {
	if !snap.IsAvailable() {
		return nil, nil
	}
	rule, err := n.ruleSignal(snap)
	if err != nil {
		return nil, err
	}
	if inf == nil {
		return rule, nil
	}

	if mode == models.AnalysisComprehensive {
		text, err := inf.Generate(ctx, technicalAnalysisPrompt(snap, rule), models.PromptContext{
			Task:   models.TaskTechnicalAnalysis,
			Token:  snap.Token,
			System: analystSystemPrompt,
			JSON:   true,
		})
		if err != nil {
			return rule, err
		}
		sig, perr := parseTechnical(text)
		if perr != nil {
			return rule, models.InvalidPrompt("technical", perr)
		}
		sig.Token = snap.Token
		sig.Indicators = rule.Indicators
		return sig, nil
	}

	text, err := inf.Generate(ctx, technicalRationalePrompt(snap, rule), models.PromptContext{
		Task:   models.TaskTechnicalRationale,
		Token:  snap.Token,
		System: analystSystemPrompt,
	})
	if err != nil {
		return rule, err
	}
	if r := cleanRationale(text); r != "" {
		rule.Rationale = r
	}
	return rule, nil
}

// ruleSignal votes EMA12/26 cross, MACD histogram sign, close vs SMA50 and RSI14.
func (n *TechnicalNode) ruleSignal(snap *models.MarketSnapshot) (*models.TechnicalSignal, error) {
	closes := indicators.Closes(snap.Candles)
	if len(closes) < MinCandles {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientCandles, len(closes), MinCandles)
	}

	ema12 := indicators.EMA(closes, 12)
	ema26 := indicators.EMA(closes, 26)
	macd, macdSignal, hist := indicators.MACD(closes, 12, 26, 9)
	rsi := indicators.RSI(closes, 14)
	last := closes[len(closes)-1]

	votes := []float64{sign(ema12 - ema26), sign(hist)}
	ind := map[string]float64{
		"close":       last,
		"ema12":       ema12,
		"ema26":       ema26,
		"macd":        macd,
		"macd_signal": macdSignal,
		"macd_hist":   hist,
		"rsi14":       rsi,
		"change_pct":  indicators.PctChange(closes),
	}
	if len(closes) >= 50 {
		sma50 := indicators.SMA(closes, 50)
		ind["sma50"] = sma50
		votes = append(votes, sign(last-sma50))
	}
	switch {
	case rsi > 55:
		votes = append(votes, 1)
	case rsi < 45:
		votes = append(votes, -1)
	default:
		votes = append(votes, 0)
	}
	if lr := indicators.LogReturns(closes); len(lr) >= 20 && n.barsPerYear != nil {
		ind["volatility"] = indicators.RealizedVolatility(lr, 20, n.barsPerYear(snap.Timeframe))
	}

	sum := 0.0
	for _, v := range votes {
		sum += v
	}
	score := sum / float64(len(votes))
	ind["score"] = score

	trend := models.Neutral
	switch {
	case score >= 0.5:
		trend = models.Bullish
	case score <= -0.5:
		trend = models.Bearish
	}

	return &models.TechnicalSignal{
		Token:      snap.Token,
		Trend:      trend,
		Confidence: models.Clamp01(0.4 + 0.5*math.Abs(score)),
		Rationale:  ruleTechnicalRationale(trend, ind),
		Indicators: ind,
	}, nil
}

func ruleTechnicalRationale(trend models.Trend, ind map[string]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trend %s: EMA12 %s EMA26, MACD histogram %+.4f, RSI14 %.1f",
		trend, compare(ind["ema12"], ind["ema26"]), ind["macd_hist"], ind["rsi14"])
	if sma, ok := ind["sma50"]; ok {
		fmt.Fprintf(&b, ", close %s SMA50", compare(ind["close"], sma))
	}
	b.WriteString(".")
	return b.String()
}

func compare(a, b float64) string {
	switch {
	case a > b:
		return "above"
	case a < b:
		return "below"
	default:
		return "at"
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// cleanRationale trims model output to a single short paragraph.
func cleanRationale(text string) string {
	text = strings.TrimSpace(stripFences(text))
	text = strings.Join(strings.Fields(text), " ")
	const max = 600
	if len(text) > max {
		cut := strings.LastIndex(text[:max], " ")
		if cut < max/2 {
			cut = max
		}
		text = text[:cut] + "..."
	}
	return text
}
