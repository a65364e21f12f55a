package analysis

import (
	"fmt"
	"strings"
	"time"

	"TokenPulse/internal/domain/models"
)

// FormatCoinList joins coins for display.
func FormatCoinList(coins []string) string {
	if len(coins) == 0 {
		return "No coins"
	}
	return strings.Join(coins, ", ")
}

// FormatReply renders the human-readable reply attached to successful outcomes.
func FormatReply(report *models.AnalysisReport, coinSource string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Crypto analysis (%s, %s)\n", report.AnalysisType, report.Timeframe)
	fmt.Fprintf(&b, "Generated %s\n", report.GeneratedAt.In(loc).Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Coins: %s", FormatCoinList(report.Tokens))
	if coinSource != "" && coinSource != models.CoinSourceRequest {
		fmt.Fprintf(&b, " (%s)", coinSource)
	}
	b.WriteString("\n\n")

	for _, tok := range report.Tokens {
		b.WriteString(formatTokenLine(tok, report))
		b.WriteString("\n")
	}

	if s := strings.TrimSpace(report.OverallSummary); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if n := len(report.Errors); n > 0 {
		fmt.Fprintf(&b, "\nNote: %d stage(s) degraded, results may be partial.\n", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTokenLine(tok string, report *models.AnalysisReport) string {
	rec := report.Recommendations[tok]
	parts := []string{fmt.Sprintf("%s: %s", tok, strings.ToUpper(string(rec)))}

	if m, ok := report.Market[tok]; ok {
		parts = append(parts, fmt.Sprintf("price %s (%+.2f%%)", formatPrice(m.LastPrice), m.ChangePct))
	}
	sig := report.Signals[tok]
	if sig.Technical != nil {
		parts = append(parts, fmt.Sprintf("trend %s %.0f%%", sig.Technical.Trend, sig.Technical.Confidence*100))
	} else {
		parts = append(parts, "no technical data")
	}
	if sig.Sentiment != nil {
		parts = append(parts, fmt.Sprintf("news %+.2f", sig.Sentiment.Polarity))
	} else {
		parts = append(parts, "no news sentiment")
	}
	return "- " + strings.Join(parts, " | ")
}

func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.0f", p)
	case p >= 1:
		return fmt.Sprintf("%.2f", p)
	default:
		return fmt.Sprintf("%.6f", p)
	}
}
