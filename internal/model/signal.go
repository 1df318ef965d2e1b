package model

import (
	"encoding/json"
	"time"
)

// Decision is the discrete trading decision emitted on every evaluation.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// PatternKind identifies one entry of the chart-pattern catalog.
type PatternKind string

const (
	PatternDoubleTop          PatternKind = "DOUBLE_TOP"
	PatternDoubleBottom       PatternKind = "DOUBLE_BOTTOM"
	PatternHeadShoulders      PatternKind = "HEAD_SHOULDERS"
	PatternInvHeadShoulders   PatternKind = "INVERSE_HEAD_SHOULDERS"
	PatternAscendingTriangle  PatternKind = "ASCENDING_TRIANGLE"
	PatternDescendingTriangle PatternKind = "DESCENDING_TRIANGLE"
	PatternRisingWedge        PatternKind = "RISING_WEDGE"
	PatternFallingWedge       PatternKind = "FALLING_WEDGE"
	PatternBullFlag           PatternKind = "BULL_FLAG"
	PatternBearFlag           PatternKind = "BEAR_FLAG"
	PatternCupHandle          PatternKind = "CUP_HANDLE"
)

// PatternMatch holds a detected chart pattern plus the structural price
// levels derived from its geometry. Produced fresh on every evaluation.
type PatternMatch struct {
	Kind          PatternKind `json:"kind"`
	Support       float64     `json:"support"`
	Resistance    float64     `json:"resistance"`
	StructureLow  float64     `json:"structure_low"`
	StructureHigh float64     `json:"structure_high"`
}

// Signal is one immutable evaluation result. A new Signal supersedes the
// previous one; it is never mutated after construction.
type Signal struct {
	Symbol      string        `json:"symbol"`
	Decision    Decision      `json:"decision"`
	Price       float64       `json:"price"`
	RSI         float64       `json:"rsi"`
	EMAShort    float64       `json:"ema_short"`
	EMALong     float64       `json:"ema_long"`
	StopLoss    float64       `json:"stop_loss,omitempty"`
	TakeProfit  float64       `json:"take_profit,omitempty"`
	Confidence  float64       `json:"confidence"`
	Pattern     *PatternMatch `json:"pattern,omitempty"`
	Reason      string        `json:"reason"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Notice is an auxiliary event pushed alongside signals: pattern matches,
// instrument switches, stream reconnects.
type Notice struct {
	Kind    string        `json:"kind"` // "pattern", "switch", "reconnect"
	Symbol  string        `json:"symbol"`
	Message string        `json:"message"`
	Pattern *PatternMatch `json:"pattern,omitempty"`
	TS      string        `json:"ts"`
}

// JSON returns the JSON-encoded notice.
func (n *Notice) JSON() []byte {
	b, _ := json.Marshal(n)
	return b
}
