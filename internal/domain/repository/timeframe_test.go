package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want Timeframe
	}{
		{"", TF1d},
		{"4h", TF4h},
		{"1M", TF1M},
		{"1s", TF1d},
		{"garbage", TF1d},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTimeframe(tt.in), tt.in)
	}
}

func TestTimeframeBarsPerYear(t *testing.T) {
	assert.InDelta(t, 365.0, TF1d.BarsPerYear(), 1e-9)
	assert.InDelta(t, 365.0*24, TF1h.BarsPerYear(), 1e-9)
	assert.Equal(t, 15*time.Minute, TF15m.Duration())
	assert.Equal(t, time.Duration(0), Timeframe("2d").Duration())
}
