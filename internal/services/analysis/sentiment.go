package analysis

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
)

var positiveTerms = map[string]struct{}{
	"rally": {}, "rallies": {}, "surge": {}, "surges": {}, "soar": {}, "soars": {},
	"gain": {}, "gains": {}, "bullish": {}, "inflow": {}, "inflows": {}, "record": {},
	"adoption": {}, "approval": {}, "approved": {}, "upgrade": {}, "breakout": {},
	"rebound": {}, "rebounds": {}, "growth": {}, "partnership": {}, "boost": {},
	"jump": {}, "jumps": {}, "climb": {}, "climbs": {}, "rise": {}, "rises": {},
	"optimism": {}, "accumulation": {}, "milestone": {}, "launch": {}, "launches": {},
}

var negativeTerms = map[string]struct{}{
	"crash": {}, "crashes": {}, "plunge": {}, "plunges": {}, "slump": {}, "slumps": {},
	"bearish": {}, "outflow": {}, "outflows": {}, "hack": {}, "hacked": {}, "exploit": {},
	"lawsuit": {}, "ban": {}, "bans": {}, "selloff": {}, "sell-off": {}, "drop": {},
	"drops": {}, "fall": {}, "falls": {}, "decline": {}, "declines": {}, "fear": {},
	"liquidation": {}, "liquidations": {}, "fraud": {}, "dump": {}, "losses": {},
	"warning": {}, "collapse": {}, "delisting": {}, "outage": {},
}

// SentimentNode implements service.SentimentAnalyzer with a headline lexicon.
type SentimentNode struct{}

func NewSentimentNode() *SentimentNode { return &SentimentNode{} }

// Analyze returns nil without an error when the digest holds no articles.
func (n *SentimentNode) Analyze(ctx context.Context, inf repository.Inference, mode models.AnalysisType, digest *models.NewsDigest) (*models.SentimentScore, error) {
	if !digest.IsAvailable() || len(digest.Articles) == 0 {
		return nil, nil
	}
	rule := ScoreArticles(digest.Token, digest.Articles)
	if inf == nil {
		return rule, nil
	}

	if mode == models.AnalysisComprehensive {
		text, err := inf.Generate(ctx, sentimentAnalysisPrompt(digest, rule), models.PromptContext{
			Task:   models.TaskSentimentAnalysis,
			Token:  digest.Token,
			System: analystSystemPrompt,
			JSON:   true,
		})
		if err != nil {
			return rule, err
		}
		s, perr := parseSentiment(text)
		if perr != nil {
			return rule, models.InvalidPrompt("sentiment", perr)
		}
		s.Token = digest.Token
		s.Articles = len(digest.Articles)
		return s, nil
	}

	text, err := inf.Generate(ctx, sentimentRationalePrompt(digest, rule), models.PromptContext{
		Task:   models.TaskSentimentRationale,
		Token:  digest.Token,
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

// ScoreArticles computes polarity as (pos-neg)/(pos+neg) over all matched terms.
func ScoreArticles(token string, articles []models.Article) *models.SentimentScore {
	var pos, neg, hit int
	for _, a := range articles {
		p, n := countTerms(a.Title + " " + a.Summary)
		pos += p
		neg += n
		if p+n > 0 {
			hit++
		}
	}
	polarity := 0.0
	if pos+neg > 0 {
		polarity = float64(pos-neg) / float64(pos+neg)
	}
	conf := 0.2
	if hit > 0 {
		conf = 0.3 + 0.1*float64(hit)
	}
	return &models.SentimentScore{
		Token:      token,
		Polarity:   models.ClampPolarity(polarity),
		Confidence: models.Clamp01(conf),
		Articles:   len(articles),
		Rationale: fmt.Sprintf("%d articles, %d positive and %d negative signals, %s tone.",
			len(articles), pos, neg, tone(polarity)),
	}
}

func countTerms(text string) (pos, neg int) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	for _, w := range words {
		w = strings.Trim(w, "-")
		if _, ok := positiveTerms[w]; ok {
			pos++
		}
		if _, ok := negativeTerms[w]; ok {
			neg++
		}
	}
	return pos, neg
}

func tone(polarity float64) string {
	switch {
	case polarity > 0.2:
		return "positive"
	case polarity < -0.2:
		return "negative"
	default:
		return "mixed"
	}
}
