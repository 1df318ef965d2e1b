// Package engine orchestrates the candle buffer, indicator series, crossover
// confirmation and pattern matching into one trading signal per finalized
// candle.
//
// The engine owns exactly one instrument at a time. All buffer mutation and
// evaluation happens on the stream-event path; the control surface only
// reads the latest signal or triggers an instrument switch, which replaces
// the buffer wholesale.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"candlesignal/internal/buffer"
	"candlesignal/internal/indicator"
	"candlesignal/internal/model"
	"candlesignal/internal/pattern"
)

var (
	// ErrBadSymbol rejects a malformed instrument symbol.
	ErrBadSymbol = errors.New("malformed instrument symbol")

	// ErrSwitchInFlight rejects a switch requested while another one is
	// still running. Switches are not queued.
	ErrSwitchInFlight = errors.New("instrument switch already in progress")
)

// minPatternHistory is the floor on closes before any evaluation proceeds;
// it also matches the pattern matcher's level window.
const minPatternHistory = 20

// Config holds every tunable the engine reads. It is validated once at
// startup and never consulted from the environment mid-computation.
type Config struct {
	Symbol   string
	Interval string

	EMAShort  int
	EMALong   int
	RSIPeriod int

	// RSIBuyCeiling / RSISellFloor gate crossover entries (default 60/40).
	RSIBuyCeiling float64
	RSISellFloor  float64

	// StrictFilter additionally requires RSI inside (50,70) with price
	// above EMA-long for BUY, mirrored for SELL.
	StrictFilter bool

	// Confirmation requires a detected cross to survive one more candle
	// before the engine acts on it (default on).
	Confirmation bool

	BufferCapacity int
	HistoryLimit   int

	// Indicator-based risk offsets as fractions of entry price.
	StopPct   float64
	TargetPct float64

	// SwitchTimeout bounds the history fetch during an instrument switch.
	SwitchTimeout time.Duration
}

// StreamController lets the engine retarget the live stream after an
// instrument switch.
type StreamController interface {
	Switch(symbol string)
}

// Hooks are optional observation points; nil fields are skipped.
type Hooks struct {
	Evaluated      func(decision model.Decision, dur time.Duration)
	PatternMatched func(kind model.PatternKind)
	CandleClosed   func()
	Provisional    func()
}

// Engine is the per-instrument signal engine.
type Engine struct {
	cfg     Config
	history model.HistoryProvider
	pub     model.Publisher
	stream  StreamController
	hooks   Hooks

	// archiveCh receives finalized candles for the candle archive; nil
	// disables archiving. Sends never block the evaluation path.
	archiveCh chan<- model.Candle

	mu         sync.RWMutex
	symbol     string
	buf        *buffer.CandleBuffer
	lastSignal *model.Signal

	switchMu  sync.Mutex
	switching bool
}

// New creates an engine for cfg.Symbol. The stream controller, archive
// channel and hooks are optional and attached via the Set methods.
func New(cfg Config, history model.HistoryProvider, pub model.Publisher) *Engine {
	return &Engine{
		cfg:     cfg,
		history: history,
		pub:     pub,
		symbol:  cfg.Symbol,
		buf:     buffer.New(cfg.BufferCapacity),
	}
}

// SetStream attaches the live-stream controller used on instrument switches.
func (e *Engine) SetStream(s StreamController) { e.stream = s }

// SetArchive attaches the finalized-candle archive channel.
func (e *Engine) SetArchive(ch chan<- model.Candle) { e.archiveCh = ch }

// SetHooks attaches observation hooks.
func (e *Engine) SetHooks(h Hooks) { e.hooks = h }

// Symbol returns the active instrument symbol.
func (e *Engine) Symbol() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.symbol
}

// CurrentSignal returns the most recent Signal, or nil before the first
// evaluation.
func (e *Engine) CurrentSignal() *model.Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSignal
}

// Seed replaces the buffer with freshly fetched history for the active
// symbol. Called at startup and before every stream (re)subscribe so a
// reconnect gap never leaves an indicator discontinuity.
func (e *Engine) Seed(ctx context.Context) error {
	e.mu.RLock()
	symbol := e.symbol
	e.mu.RUnlock()

	candles, err := e.history.FetchKlines(ctx, symbol, e.cfg.Interval, e.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("seed %s: %w", symbol, err)
	}

	buf := buffer.New(e.cfg.BufferCapacity)
	for _, c := range candles {
		buf.ApplyFinal(c)
	}

	e.mu.Lock()
	if e.symbol == symbol {
		e.buf = buf
	}
	e.mu.Unlock()

	log.Printf("[engine] seeded %s with %d candles", symbol, len(candles))
	return nil
}

// OnCandle routes one stream event. Provisional updates only refresh the
// trailing candle and the price channel; a final candle additionally runs a
// full evaluation.
func (e *Engine) OnCandle(c model.Candle) {
	e.mu.Lock()
	if c.Symbol != e.symbol {
		// Stale event from a previous subscription during a switch.
		e.mu.Unlock()
		return
	}

	if !c.IsFinal {
		e.buf.ApplyProvisional(c)
		e.mu.Unlock()
		if e.hooks.Provisional != nil {
			e.hooks.Provisional()
		}
		e.publishPrice(c)
		return
	}

	e.buf.ApplyFinal(c)
	sig := e.evaluate(c)
	e.lastSignal = &sig
	e.mu.Unlock()

	if e.hooks.CandleClosed != nil {
		e.hooks.CandleClosed()
	}
	e.publishPrice(c)
	e.pub.PublishSignal(sig)
	if sig.Pattern != nil {
		e.pub.PublishNotice(model.Notice{
			Kind:    "pattern",
			Symbol:  sig.Symbol,
			Message: fmt.Sprintf("pattern %s detected", sig.Pattern.Kind),
			Pattern: sig.Pattern,
			TS:      time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	if e.archiveCh != nil {
		select {
		case e.archiveCh <- c:
		default:
			// Archive lagging; losing one archived candle beats
			// blocking the evaluation path.
		}
	}
}

func (e *Engine) publishPrice(c model.Candle) {
	e.pub.PublishPrice(model.PriceUpdate{
		Symbol:   c.Symbol,
		Price:    c.Close,
		OpenTime: c.OpenTime,
		Volume:   c.Volume,
		IsFinal:  c.IsFinal,
		TS:       time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// evaluate runs the full decision pipeline against the current buffer.
// Caller holds e.mu.
func (e *Engine) evaluate(latest model.Candle) model.Signal {
	start := time.Now()
	sig := e.decide(latest)
	if e.hooks.Evaluated != nil {
		e.hooks.Evaluated(sig.Decision, time.Since(start))
	}
	return sig
}

func (e *Engine) decide(latest model.Candle) model.Signal {
	sig := model.Signal{
		Symbol:      e.symbol,
		Decision:    model.DecisionHold,
		Price:       latest.Close,
		GeneratedAt: time.Now().UTC(),
	}

	closes := e.buf.Closes()
	need := e.cfg.EMALong
	if need < minPatternHistory {
		need = minPatternHistory
	}
	if len(closes) < need {
		sig.Reason = fmt.Sprintf("insufficient history: %d closes, need %d", len(closes), need)
		return sig
	}

	emaShort := indicator.EMA(closes, e.cfg.EMAShort)
	emaLong := indicator.EMA(closes, e.cfg.EMALong)
	rsi := indicator.RSI(closes, e.cfg.RSIPeriod)

	last := len(closes) - 1
	sig.EMAShort = definedOr(emaShort, last, 0)
	sig.EMALong = definedOr(emaLong, last, 0)
	sig.RSI = definedOr(rsi, last, 50)

	match := pattern.Detect(closes)
	sig.Pattern = match
	if match != nil && e.hooks.PatternMatched != nil {
		e.hooks.PatternMatched(match.Kind)
	}

	cross := e.crossAtLatest(emaShort, emaLong, last)
	switch cross.Direction {
	case indicator.CrossUp:
		if !cross.Confirmed {
			sig.Reason = "up-cross pending confirmation"
			return sig
		}
		if ok, why := e.buyFilter(sig.RSI, latest.Close, sig.EMALong); !ok {
			sig.Reason = why
			return sig
		}
		sig.Decision = model.DecisionBuy
		sig.Reason = fmt.Sprintf("EMA(%d/%d) up-cross confirmed, RSI %.1f", e.cfg.EMAShort, e.cfg.EMALong, sig.RSI)
		sig.Confidence = confidence(e.cfg.RSIBuyCeiling - sig.RSI)
	case indicator.CrossDown:
		if !cross.Confirmed {
			sig.Reason = "down-cross pending confirmation"
			return sig
		}
		if ok, why := e.sellFilter(sig.RSI, latest.Close, sig.EMALong); !ok {
			sig.Reason = why
			return sig
		}
		sig.Decision = model.DecisionSell
		sig.Reason = fmt.Sprintf("EMA(%d/%d) down-cross confirmed, RSI %.1f", e.cfg.EMAShort, e.cfg.EMALong, sig.RSI)
		sig.Confidence = confidence(sig.RSI - e.cfg.RSISellFloor)
	default:
		sig.Reason = "no crossover"
		return sig
	}

	ind := indicatorLevels(sig.Decision, latest.Close, e.cfg.StopPct, e.cfg.TargetPct)
	fused := fuseLevels(sig.Decision, ind, patternLevels(match, latest.Close))
	sig.StopLoss = fused.stop
	sig.TakeProfit = fused.target
	return sig
}

// crossAtLatest applies the confirmation policy. With confirmation on, the
// engine acts on a cross at the previous index that still holds on the
// newest candle; a cross on the newest candle itself stays provisional.
// With confirmation off, a cross on the newest candle is acted on directly.
func (e *Engine) crossAtLatest(emaShort, emaLong []float64, last int) indicator.Cross {
	if !e.cfg.Confirmation {
		c := indicator.DetectAt(emaShort, emaLong, last)
		if c.Direction != indicator.CrossNone {
			c.Confirmed = true
		}
		return c
	}
	if c := indicator.DetectAt(emaShort, emaLong, last-1); c.Direction != indicator.CrossNone && c.Confirmed {
		return c
	}
	// Same-candle cross: reported, but provisional until one more close.
	return indicator.DetectAt(emaShort, emaLong, last)
}

func (e *Engine) buyFilter(rsi, price, emaLong float64) (bool, string) {
	if e.cfg.StrictFilter {
		if rsi <= 50 || rsi >= 70 {
			return false, fmt.Sprintf("up-cross filtered: RSI %.1f outside (50,70)", rsi)
		}
		if price <= emaLong {
			return false, "up-cross filtered: price below long EMA"
		}
		return true, ""
	}
	if rsi > e.cfg.RSIBuyCeiling {
		return false, fmt.Sprintf("up-cross filtered: RSI %.1f above ceiling %.0f", rsi, e.cfg.RSIBuyCeiling)
	}
	return true, ""
}

func (e *Engine) sellFilter(rsi, price, emaLong float64) (bool, string) {
	if e.cfg.StrictFilter {
		if rsi <= 30 || rsi >= 50 {
			return false, fmt.Sprintf("down-cross filtered: RSI %.1f outside (30,50)", rsi)
		}
		if price >= emaLong {
			return false, "down-cross filtered: price above long EMA"
		}
		return true, ""
	}
	if rsi < e.cfg.RSISellFloor {
		return false, fmt.Sprintf("down-cross filtered: RSI %.1f below floor %.0f", rsi, e.cfg.RSISellFloor)
	}
	return true, ""
}

// confidence maps the favorable RSI headroom onto [0.6, 0.95].
func confidence(headroom float64) float64 {
	bonus := headroom / 100
	if bonus < 0 {
		bonus = 0
	}
	return math.Min(0.95, 0.6+bonus)
}

func definedOr(series []float64, i int, fallback float64) float64 {
	if indicator.Defined(series, i) {
		return series[i]
	}
	return fallback
}

// SwitchInstrument atomically retargets the engine to a new symbol: validate,
// fetch fresh history with a bounded timeout, replace buffer and state,
// retarget the stream. A failed fetch leaves the prior state untouched.
// Concurrent switches are rejected, not queued.
func (e *Engine) SwitchInstrument(ctx context.Context, symbol string) error {
	if !model.ValidSymbol(symbol) {
		return fmt.Errorf("%w: %q", ErrBadSymbol, symbol)
	}

	e.switchMu.Lock()
	if e.switching {
		e.switchMu.Unlock()
		return ErrSwitchInFlight
	}
	e.switching = true
	e.switchMu.Unlock()

	defer func() {
		e.switchMu.Lock()
		e.switching = false
		e.switchMu.Unlock()
	}()

	if e.Symbol() == symbol {
		return nil
	}

	timeout := e.cfg.SwitchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	candles, err := e.history.FetchKlines(fetchCtx, symbol, e.cfg.Interval, e.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("switch to %s: history fetch: %w", symbol, err)
	}

	buf := buffer.New(e.cfg.BufferCapacity)
	for _, c := range candles {
		buf.ApplyFinal(c)
	}

	e.mu.Lock()
	old := e.symbol
	e.symbol = symbol
	e.buf = buf
	e.lastSignal = nil
	e.mu.Unlock()

	if e.stream != nil {
		e.stream.Switch(symbol)
	}

	e.pub.PublishNotice(model.Notice{
		Kind:    "switch",
		Symbol:  symbol,
		Message: fmt.Sprintf("active instrument changed %s -> %s", old, symbol),
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
	})
	log.Printf("[engine] switched instrument %s -> %s (%d candles)", old, symbol, len(candles))
	return nil
}
