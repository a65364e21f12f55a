package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"TokenPulse/internal/domain/models"
)

const analystSystemPrompt = "You are a crypto market analyst. Be concise and factual. " +
	"Never invent prices or events that are not in the provided data."

// SummarySystemPrompt frames the final aggregation call.
const SummarySystemPrompt = "You are a crypto research lead writing a short briefing for traders. " +
	"Only discuss the tokens you are given. Do not give personal financial advice."

// candleWindow is how many recent candles the comprehensive prompt shows.
const candleWindow = 30

func technicalRationalePrompt(snap *models.MarketSnapshot, rule *models.TechnicalSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Token: %s (%s candles)\n", snap.Token, snap.Timeframe)
	fmt.Fprintf(&b, "Rule-based trend: %s, confidence %.2f\n", rule.Trend, rule.Confidence)
	writeIndicators(&b, rule.Indicators)
	b.WriteString("\nIn at most two sentences, explain what these indicators say about the trend.")
	return b.String()
}

func technicalAnalysisPrompt(snap *models.MarketSnapshot, rule *models.TechnicalSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Token: %s (%s candles)\n", snap.Token, snap.Timeframe)
	writeIndicators(&b, rule.Indicators)

	candles := snap.Candles
	if len(candles) > candleWindow {
		candles = candles[len(candles)-candleWindow:]
	}
	b.WriteString("\nRecent candles (open_time, open, high, low, close, volume):\n")
	for _, c := range candles {
		fmt.Fprintf(&b, "%s, %.6g, %.6g, %.6g, %.6g, %.6g\n",
			c.OpenTime.UTC().Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	b.WriteString("\nReturn only JSON: {\"trend\": \"bullish|bearish|neutral\", " +
		"\"confidence\": 0.0-1.0, \"rationale\": \"one or two sentences\"}")
	return b.String()
}

func sentimentRationalePrompt(d *models.NewsDigest, rule *models.SentimentScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Token: %s\nLexicon polarity: %+.2f over %d articles\n", d.Token, rule.Polarity, rule.Articles)
	writeArticles(&b, d.Articles)
	b.WriteString("\nIn at most two sentences, summarize the news tone for this token.")
	return b.String()
}

func sentimentAnalysisPrompt(d *models.NewsDigest, rule *models.SentimentScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Token: %s\n", d.Token)
	writeArticles(&b, d.Articles)
	b.WriteString("\nReturn only JSON: {\"polarity\": -1.0-1.0, " +
		"\"confidence\": 0.0-1.0, \"rationale\": \"one or two sentences\"}")
	return b.String()
}

func writeIndicators(b *strings.Builder, ind map[string]float64) {
	keys := make([]string, 0, len(ind))
	for k := range ind {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("Indicators:\n")
	for _, k := range keys {
		fmt.Fprintf(b, "- %s: %.6g\n", k, ind[k])
	}
}

func writeArticles(b *strings.Builder, articles []models.Article) {
	b.WriteString("Headlines:\n")
	for _, a := range articles {
		fmt.Fprintf(b, "- %s", a.Title)
		if a.Source != "" {
			fmt.Fprintf(b, " (%s)", a.Source)
		}
		if !a.PublishedAt.IsZero() {
			fmt.Fprintf(b, " [%s]", a.PublishedAt.UTC().Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
}

// tokenEssentials is the per-token view handed to the summary call.
type tokenEssentials struct {
	Token          string                `json:"token"`
	Recommendation models.Recommendation `json:"recommendation"`
	Trend          models.Trend          `json:"trend,omitempty"`
	TrendConf      float64               `json:"trend_confidence,omitempty"`
	Technical      string                `json:"technical,omitempty"`
	Polarity       *float64              `json:"polarity,omitempty"`
	Sentiment      string                `json:"sentiment,omitempty"`
	LastPrice      float64               `json:"last_price,omitempty"`
	ChangePct      float64               `json:"change_pct,omitempty"`
	Degraded       []string              `json:"degraded_stages,omitempty"`
}

// BuildSummaryPrompt renders the report's per-token essentials for the overall summary.
// Tokens keep request order so identical reports give identical prompts.
func BuildSummaryPrompt(report *models.AnalysisReport) string {
	degraded := map[string][]string{}
	for _, e := range report.Errors {
		degraded[e.Token] = append(degraded[e.Token], e.Stage)
	}

	items := make([]tokenEssentials, 0, len(report.Tokens))
	for _, tok := range report.Tokens {
		it := tokenEssentials{
			Token:          tok,
			Recommendation: report.Recommendations[tok],
			Degraded:       degraded[tok],
		}
		sig := report.Signals[tok]
		if sig.Technical != nil {
			it.Trend = sig.Technical.Trend
			it.TrendConf = sig.Technical.Confidence
			it.Technical = sig.Technical.Rationale
		}
		if sig.Sentiment != nil {
			p := sig.Sentiment.Polarity
			it.Polarity = &p
			it.Sentiment = sig.Sentiment.Rationale
		}
		if m, ok := report.Market[tok]; ok {
			it.LastPrice = m.LastPrice
			it.ChangePct = m.ChangePct
		}
		items = append(items, it)
	}
	data, _ := json.MarshalIndent(items, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis type: %s, timeframe: %s\n", report.AnalysisType, report.Timeframe)
	fmt.Fprintf(&b, "Allowed tokens: %s\n\n", strings.Join(report.Tokens, ", "))
	b.WriteString("Per-token results:\n")
	b.Write(data)
	b.WriteString("\n\nWrite a briefing of at most 120 words. Mention each allowed token once with its " +
		"recommendation and the main reason. If a token has insufficient data, say so plainly. " +
		"Do not mention any token that is not in the allowed list.")
	return b.String()
}
