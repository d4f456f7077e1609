package model

import (
	"encoding/json"
	"time"
)

// Candle is an OHLC bar for a (symbol, timeframe) pair as served over REST
// and consumed by the swing generator.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	TS        time.Time `json:"ts"` // bucket start (UTC, timeframe-aligned)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Key returns "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
