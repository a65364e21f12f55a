// Package indicators computes technical indicators over chronological (oldest first) candle series.
package indicators

import (
	"math"

	"TokenPulse/internal/domain/models"
)

// Closes extracts close prices.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA returns the simple moving average of the last period values, or 0 if there are too few.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMASeries returns the exponential moving average at every index from period-1 onwards,
// seeded with the SMA of the first period values. The result has len(values)-period+1 entries.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := SMA(values[:period], period)
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
		out = append(out, ema)
	}
	return out
}

// EMA returns the latest exponential moving average, or 0 if there are too few values.
func EMA(values []float64, period int) float64 {
	s := EMASeries(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// RSI computes Wilder's relative strength index. It returns 50 when there is not enough data.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		ch := values[i] - values[i-1]
		if ch > 0 {
			gain += ch
		} else {
			loss -= ch
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(values); i++ {
		ch := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if ch > 0 {
			g = ch
		} else {
			l = -ch
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line and histogram at the last bar.
// All three are zero when there are fewer than slow+signal-1 values.
func MACD(values []float64, fast, slow, signal int) (macd, sig, hist float64) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(values) < slow+signal-1 {
		return 0, 0, 0
	}
	fastS := EMASeries(values, fast)
	slowS := EMASeries(values, slow)
	// align fast series to the slow one
	offset := len(fastS) - len(slowS)
	line := make([]float64, len(slowS))
	for i := range slowS {
		line[i] = fastS[i+offset] - slowS[i]
	}
	sigS := EMASeries(line, signal)
	macd = line[len(line)-1]
	sig = sigS[len(sigS)-1]
	return macd, sig, macd - sig
}

// PctChange returns the percent change between the first and last value.
func PctChange(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	return (values[len(values)-1] - values[0]) / values[0] * 100
}

// LogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(values)-1, or nil if insufficient data.
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the latest window
// using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range logReturns[len(logReturns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}
