// Package fixtures provides deterministic collaborators for mock-mode requests.
package fixtures

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"time"

	"TokenPulse/internal/domain/models"
	"TokenPulse/internal/domain/repository"
)

const (
	source      = "fixture"
	candleCount = 60
)

// Epoch anchors fixture candle times so repeated runs are identical.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Market serves BTC as a steady uptrend, SOL as an accelerating decline,
// ETH as unavailable, and everything else as a sideways range.
type Market struct{}

func NewMarket() *Market { return &Market{} }

func (Market) FetchCandles(ctx context.Context, token string, tf repository.Timeframe) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.Unavailable(source, err)
	}
	var price func(i int) float64
	switch token {
	case "BTC":
		price = func(i int) float64 { return 40000 * math.Pow(1.01, float64(i)) }
	case "ETH":
		return nil, models.Unavailable(source, errors.New("market data unavailable for ETH"))
	case "SOL":
		price = func(i int) float64 { return 150 * (1 - 0.00025*float64(i*i)) }
	default:
		base := basePrice(token)
		price = func(i int) float64 { return base * (1 + 0.02*math.Sin(float64(i)/3)) }
	}
	return buildCandles(price, tf), nil
}

func buildCandles(price func(i int) float64, tf repository.Timeframe) []models.Candle {
	step := tf.Duration()
	if step <= 0 {
		step = 24 * time.Hour
	}
	out := make([]models.Candle, candleCount)
	prev := price(0)
	for i := range out {
		c := price(i)
		out[i] = models.Candle{
			OpenTime: Epoch.Add(time.Duration(i) * step),
			Open:     prev,
			High:     math.Max(prev, c) * 1.002,
			Low:      math.Min(prev, c) * 0.998,
			Close:    c,
			Volume:   1000 + float64(i%7)*50,
		}
		prev = c
	}
	return out
}

func basePrice(token string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return 1 + float64(h.Sum32()%5000)/10
}
