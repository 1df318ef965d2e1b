package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV candle for a single instrument.
// OpenTime is the bucket start in epoch milliseconds (UTC).
// A candle with IsFinal=false is still forming upstream and may be
// replaced in place any number of times before it closes.
type Candle struct {
	Symbol   string  `json:"symbol"`
	OpenTime int64   `json:"open_time"` // epoch ms
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	IsFinal  bool    `json:"is_final"`
}

// Time returns the bucket start as a time.Time (UTC).
func (c *Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// PriceUpdate is the payload pushed on the price channel for every candle
// update, provisional or final.
type PriceUpdate struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	OpenTime int64   `json:"open_time"`
	Volume   float64 `json:"volume"`
	IsFinal  bool    `json:"is_final"`
	TS       string  `json:"ts"` // RFC3339Nano emission time
}

// JSON returns the JSON-encoded price update.
func (p *PriceUpdate) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}
