// Package buffer holds the bounded rolling candle history for the active
// instrument. One buffer belongs to exactly one engine instance; switching
// instruments replaces the buffer wholesale instead of mutating it.
package buffer

import "candlesignal/internal/model"

// CandleBuffer is an ordered, capacity-bounded sequence of candles,
// oldest-first. At most one trailing provisional candle is tolerated; it is
// overwritten in place while open and never counts toward eviction.
//
// Not safe for concurrent use — all mutation happens on the single
// stream-event goroutine.
type CandleBuffer struct {
	candles     []model.Candle
	capacity    int
	provisional bool // true while the last element is still forming
}

// New creates a buffer that retains at most capacity final candles.
func New(capacity int) *CandleBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &CandleBuffer{
		candles:  make([]model.Candle, 0, capacity+1),
		capacity: capacity,
	}
}

// ApplyFinal appends a closed candle. If a trailing provisional candle is
// present it is replaced by the final one. Evicts the oldest candle once the
// final count exceeds capacity.
func (b *CandleBuffer) ApplyFinal(c model.Candle) {
	c.IsFinal = true
	if b.provisional && len(b.candles) > 0 {
		b.candles[len(b.candles)-1] = c
		b.provisional = false
	} else {
		b.candles = append(b.candles, c)
	}
	if len(b.candles) > b.capacity {
		// FIFO eviction; copy keeps the backing array from growing forever.
		copy(b.candles, b.candles[1:])
		b.candles = b.candles[:len(b.candles)-1]
	}
}

// ApplyProvisional overwrites the trailing provisional candle, or appends a
// new one if the last candle is final. A provisional update never replaces a
// final candle and is dropped entirely while the buffer is empty: the buffer
// must be seeded by at least one final (historical) candle first, so a
// forming candle can never be silently promoted to history.
func (b *CandleBuffer) ApplyProvisional(c model.Candle) {
	if len(b.candles) == 0 {
		return
	}
	c.IsFinal = false
	if b.provisional {
		b.candles[len(b.candles)-1] = c
		return
	}
	b.candles = append(b.candles, c)
	b.provisional = true
}

// Len returns the number of candles held, including a trailing provisional.
func (b *CandleBuffer) Len() int {
	return len(b.candles)
}

// FinalLen returns the number of closed candles held.
func (b *CandleBuffer) FinalLen() int {
	if b.provisional {
		return len(b.candles) - 1
	}
	return len(b.candles)
}

// Closes returns the ordered close prices of all closed candles.
// The trailing provisional candle, if any, is excluded so indicator series
// only ever see immutable history.
func (b *CandleBuffer) Closes() []float64 {
	n := b.FinalLen()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = b.candles[i].Close
	}
	return out
}

// Last returns the most recent closed candle. ok is false when the buffer
// holds no final candle.
func (b *CandleBuffer) Last() (model.Candle, bool) {
	n := b.FinalLen()
	if n == 0 {
		return model.Candle{}, false
	}
	return b.candles[n-1], true
}
