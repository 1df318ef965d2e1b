package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the signal engine from the concrete upstream
// (Binance REST/WS), the push channel (gateway hub, Redis mirror), and the
// candle archive (SQLite). Each implementation satisfies one of these.

// HistoryProvider fetches recent closed candles for an instrument.
// Rows come back oldest-first with IsFinal=true.
type HistoryProvider interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// Publisher fans out engine events to subscribers. Implementations must be
// safe to call from the single stream-event goroutine and must never block
// the evaluation path.
type Publisher interface {
	PublishPrice(p PriceUpdate)
	PublishSignal(s Signal)
	PublishNotice(n Notice)
}

// CandleArchiver persists finalized candles off the hot path.
type CandleArchiver interface {
	// Run reads candles from candleCh and writes them.
	// Blocks until ctx is cancelled or candleCh is closed.
	Run(ctx context.Context, candleCh <-chan Candle)

	// Close releases underlying resources.
	Close() error
}
