// Package coins normalizes ticker lists and extracts tickers from free-text chat messages.
package coins

import (
	"regexp"
	"sort"
	"strings"

	"TokenPulse/internal/domain/models"
)

var stablecoins = map[string]struct{}{
	"USDT": {}, "USDC": {}, "FDUSD": {}, "TUSD": {}, "BUSD": {}, "DAI": {}, "USDP": {}, "FRAX": {},
	"LUSD": {}, "SUSD": {}, "USTC": {}, "USDD": {}, "GUSD": {}, "PAXG": {}, "UST": {},
}

// knownTickers are matched as bare upper-case words. Everything else needs a $cashtag.
var knownTickers = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "BNB": {}, "XRP": {}, "ADA": {}, "DOGE": {}, "TRX": {},
	"TON": {}, "AVAX": {}, "DOT": {}, "LINK": {}, "MATIC": {}, "POL": {}, "LTC": {}, "BCH": {},
	"NEAR": {}, "APT": {}, "ARB": {}, "OP": {}, "SUI": {}, "ATOM": {}, "FIL": {}, "INJ": {},
	"PEPE": {}, "SHIB": {}, "WIF": {}, "UNI": {}, "AAVE": {}, "XLM": {}, "ETC": {}, "HBAR": {},
}

var coinNames = map[string]string{
	"bitcoin":   "BTC",
	"ethereum":  "ETH",
	"ether":     "ETH",
	"solana":    "SOL",
	"ripple":    "XRP",
	"cardano":   "ADA",
	"dogecoin":  "DOGE",
	"avalanche": "AVAX",
	"polkadot":  "DOT",
	"chainlink": "LINK",
	"litecoin":  "LTC",
	"toncoin":   "TON",
}

var (
	tickerShape = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)
	cashtag     = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9]{1,9})\b`)
	wordToken   = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]*`)
)

// IsStablecoin reports whether the upper-cased symbol is a known stablecoin.
func IsStablecoin(symbol string) bool {
	_, ok := stablecoins[strings.ToUpper(symbol)]
	return ok
}

// NormalizeSymbol trims, strips '$' and a USDT quote suffix, and upper-cases.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "/USDT")
	if s != "USDT" {
		s = strings.TrimSuffix(s, "USDT")
	}
	return strings.TrimSpace(s)
}

// Normalize normalizes each symbol, drops empties and stablecoins and removes duplicates
// keeping the first occurrence. Symbols that still fail the ticker shape are kept so
// validation can report them.
func Normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, raw := range tokens {
		s := NormalizeSymbol(raw)
		if s == "" || IsStablecoin(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Extract finds tickers in chat messages: $cashtags, known upper-case tickers and common
// coin names. Order follows first mention.
func Extract(messages []string) []string {
	var found []string
	for _, msg := range messages {
		type hit struct {
			pos    int
			symbol string
		}
		var hits []hit
		for _, m := range cashtag.FindAllStringSubmatchIndex(msg, -1) {
			hits = append(hits, hit{m[0], strings.ToUpper(msg[m[2]:m[3]])})
		}
		for _, m := range wordToken.FindAllStringIndex(msg, -1) {
			word := msg[m[0]:m[1]]
			if m[0] > 0 && msg[m[0]-1] == '$' {
				continue
			}
			if sym, ok := coinNames[strings.ToLower(word)]; ok {
				hits = append(hits, hit{m[0], sym})
				continue
			}
			if word == strings.ToUpper(word) {
				if _, ok := knownTickers[word]; ok {
					hits = append(hits, hit{m[0], word})
				} else if sym := NormalizeSymbol(word); sym != word {
					// BTCUSDT style pairs
					if _, ok := knownTickers[sym]; ok {
						hits = append(hits, hit{m[0], sym})
					}
				}
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
		for _, h := range hits {
			found = append(found, h.symbol)
		}
	}

	out := Normalize(found)
	valid := out[:0]
	for _, s := range out {
		if tickerShape.MatchString(s) {
			valid = append(valid, s)
		}
	}
	return valid
}

// Resolve picks the coin list for a request: explicit tokens win, then tickers extracted
// from messages, then defaults. It returns the list and which path produced it.
func Resolve(tokens, messages, defaults []string) ([]string, string) {
	if len(tokens) > 0 {
		return Normalize(tokens), models.CoinSourceRequest
	}
	if extracted := Extract(messages); len(extracted) > 0 {
		return extracted, models.CoinSourceExtracted
	}
	return Normalize(defaults), models.CoinSourceDefault
}
