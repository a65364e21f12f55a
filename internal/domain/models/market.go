package models

import "time"

// Availability distinguishes "no data" from "not yet fetched".
type Availability string

const (
	AvailabilityPending     Availability = "pending"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// Candle represents an OHLCV record.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

type MarketSnapshot struct {
	Token        string       `json:"token"`
	Timeframe    string       `json:"timeframe"`
	Candles      []Candle     `json:"candles,omitempty"`
	FetchedAt    time.Time    `json:"fetched_at"`
	Availability Availability `json:"availability"`
	Cause        string       `json:"cause,omitempty"`
}

// IsAvailable reports whether the snapshot carries usable candles.
func (s *MarketSnapshot) IsAvailable() bool {
	return s != nil && s.Availability == AvailabilityAvailable && len(s.Candles) > 0
}

type Article struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary,omitempty"`
}

type NewsDigest struct {
	Token        string       `json:"token"`
	Articles     []Article    `json:"articles,omitempty"`
	FetchedAt    time.Time    `json:"fetched_at"`
	Availability Availability `json:"availability"`
	Cause        string       `json:"cause,omitempty"`
}

// IsAvailable reports whether the digest was fetched, even if it holds no articles.
func (d *NewsDigest) IsAvailable() bool {
	return d != nil && d.Availability == AvailabilityAvailable
}

// MarketSummary is the compact market view attached to a report.
type MarketSummary struct {
	LastPrice float64   `json:"last_price"`
	ChangePct float64   `json:"change_pct"`
	Candles   int       `json:"candles"`
	AsOf      time.Time `json:"as_of"`
}
