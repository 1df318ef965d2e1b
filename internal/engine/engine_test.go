package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"candlesignal/internal/model"
)

// ── test doubles ──

// capturePub records every published event, safe for concurrent use.
type capturePub struct {
	mu      sync.Mutex
	prices  []model.PriceUpdate
	signals []model.Signal
	notices []model.Notice
}

func (p *capturePub) PublishPrice(u model.PriceUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices = append(p.prices, u)
}

func (p *capturePub) PublishSignal(s model.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, s)
}

func (p *capturePub) PublishNotice(n model.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
}

func (p *capturePub) signalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}

// stubHistory serves canned candles. When entered is non-nil the stub signals
// on it and then blocks on release, so tests can hold a switch in flight.
type stubHistory struct {
	mu      sync.Mutex
	candles []model.Candle
	err     error
	calls   int

	entered chan struct{}
	release chan struct{}
}

func (h *stubHistory) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.entered != nil {
		h.entered <- struct{}{}
		<-h.release
	}
	if h.err != nil {
		return nil, h.err
	}
	out := make([]model.Candle, len(h.candles))
	for i, c := range h.candles {
		c.Symbol = symbol
		out[i] = c
	}
	return out, nil
}

func (h *stubHistory) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func finalCandle(symbol string, i int, close float64) model.Candle {
	return model.Candle{
		Symbol:   symbol,
		OpenTime: int64(i) * 60_000,
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		Volume:   1,
		IsFinal:  true,
	}
}

// trendCandles declines for 40 candles and then rallies, so the short EMA
// crosses above the long EMA during the rally.
func trendCandles(symbol string) []model.Candle {
	out := make([]model.Candle, 0, 52)
	px := 120.0
	for i := 0; i < 40; i++ {
		px -= 0.3
		out = append(out, finalCandle(symbol, i, px))
	}
	for i := 40; i < 52; i++ {
		px += 0.8
		out = append(out, finalCandle(symbol, i, px))
	}
	return out
}

func testConfig(symbol string) Config {
	return Config{
		Symbol:         symbol,
		Interval:       "1m",
		EMAShort:       5,
		EMALong:        20,
		RSIPeriod:      14,
		RSIBuyCeiling:  100, // no gate; filter behavior has its own test
		RSISellFloor:   0,
		Confirmation:   true,
		BufferCapacity: 500,
		HistoryLimit:   100,
		StopPct:        0.005,
		TargetPct:      0.015,
	}
}

// ── evaluation ──

func TestEngine_InsufficientHistoryHolds(t *testing.T) {
	pub := &capturePub{}
	e := New(testConfig("BTCUSDT"), &stubHistory{}, pub)

	for i := 0; i < 10; i++ {
		e.OnCandle(finalCandle("BTCUSDT", i, 100+float64(i)))
	}

	sig := e.CurrentSignal()
	if sig == nil {
		t.Fatal("expected a signal after final candles")
	}
	if sig.Decision != model.DecisionHold {
		t.Errorf("decision=%s, want HOLD", sig.Decision)
	}
	if !strings.Contains(sig.Reason, "insufficient history") {
		t.Errorf("reason=%q, want insufficient-history", sig.Reason)
	}
	if sig.StopLoss != 0 || sig.TakeProfit != 0 {
		t.Errorf("HOLD carried levels stop=%v target=%v", sig.StopLoss, sig.TakeProfit)
	}
}

func TestEngine_CrossHoldsUntilConfirmation(t *testing.T) {
	pub := &capturePub{}
	e := New(testConfig("BTCUSDT"), &stubHistory{}, pub)

	for _, c := range trendCandles("BTCUSDT") {
		e.OnCandle(c)
	}

	pending := -1
	for i, s := range pub.signals {
		if s.Reason == "up-cross pending confirmation" {
			pending = i
			break
		}
	}
	if pending < 0 {
		t.Fatal("no pending-confirmation signal observed during the rally")
	}
	if pub.signals[pending].Decision != model.DecisionHold {
		t.Errorf("pending cross decision=%s, want HOLD", pub.signals[pending].Decision)
	}
	if pending+1 >= len(pub.signals) {
		t.Fatal("no candle followed the pending cross")
	}

	next := pub.signals[pending+1]
	if next.Decision != model.DecisionBuy {
		t.Fatalf("confirmation candle decision=%s (reason %q), want BUY", next.Decision, next.Reason)
	}
	if next.StopLoss >= next.Price {
		t.Errorf("BUY stop %v not below price %v", next.StopLoss, next.Price)
	}
	if next.TakeProfit <= next.Price {
		t.Errorf("BUY target %v not above price %v", next.TakeProfit, next.Price)
	}
	if next.Confidence < 0.6 || next.Confidence > 0.95 {
		t.Errorf("confidence=%v outside [0.6, 0.95]", next.Confidence)
	}
}

func TestEngine_ConfirmationOffActsOneCandleEarlier(t *testing.T) {
	firstBuy := func(confirmation bool) int {
		cfg := testConfig("BTCUSDT")
		cfg.Confirmation = confirmation
		pub := &capturePub{}
		e := New(cfg, &stubHistory{}, pub)
		for _, c := range trendCandles("BTCUSDT") {
			e.OnCandle(c)
		}
		for i, s := range pub.signals {
			if s.Decision == model.DecisionBuy {
				return i
			}
		}
		return -1
	}

	withConf := firstBuy(true)
	withoutConf := firstBuy(false)
	if withConf < 0 || withoutConf < 0 {
		t.Fatalf("no BUY produced: confirmed=%d unconfirmed=%d", withConf, withoutConf)
	}
	if withoutConf+1 != withConf {
		t.Errorf("first BUY at %d without confirmation vs %d with; want exactly one candle apart",
			withoutConf, withConf)
	}
}

func TestEngine_RSICeilingFiltersBuy(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	cfg.RSIBuyCeiling = 1 // unreachable during a rally
	pub := &capturePub{}
	e := New(cfg, &stubHistory{}, pub)

	for _, c := range trendCandles("BTCUSDT") {
		e.OnCandle(c)
	}

	filtered := false
	for _, s := range pub.signals {
		if s.Decision == model.DecisionBuy {
			t.Fatalf("BUY emitted despite ceiling: %+v", s)
		}
		if strings.Contains(s.Reason, "filtered") {
			filtered = true
		}
	}
	if !filtered {
		t.Error("expected at least one filtered up-cross")
	}
}

func TestEngine_ProvisionalPublishesPriceOnly(t *testing.T) {
	pub := &capturePub{}
	e := New(testConfig("BTCUSDT"), &stubHistory{}, pub)

	e.OnCandle(finalCandle("BTCUSDT", 0, 100))
	before := pub.signalCount()

	c := finalCandle("BTCUSDT", 1, 101)
	c.IsFinal = false
	e.OnCandle(c)

	if pub.signalCount() != before {
		t.Error("provisional candle triggered an evaluation")
	}
	last := pub.prices[len(pub.prices)-1]
	if last.IsFinal || last.Price != 101 {
		t.Errorf("price update %+v, want provisional close 101", last)
	}
}

func TestEngine_DropsForeignSymbolCandle(t *testing.T) {
	pub := &capturePub{}
	e := New(testConfig("BTCUSDT"), &stubHistory{}, pub)

	e.OnCandle(finalCandle("ETHUSDT", 0, 100))

	if n := pub.signalCount(); n != 0 {
		t.Errorf("foreign-symbol candle produced %d signals", n)
	}
	if len(pub.prices) != 0 {
		t.Error("foreign-symbol candle leaked onto the price channel")
	}
}

func TestEngine_SeedLoadsHistory(t *testing.T) {
	hist := &stubHistory{}
	for i := 0; i < 30; i++ {
		hist.candles = append(hist.candles, finalCandle("", i, 100+float64(i)*0.1))
	}
	pub := &capturePub{}
	e := New(testConfig("BTCUSDT"), hist, pub)

	if err := e.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	e.OnCandle(finalCandle("BTCUSDT", 30, 103.1))

	sig := e.CurrentSignal()
	if sig == nil {
		t.Fatal("no signal after seeded evaluation")
	}
	if strings.Contains(sig.Reason, "insufficient history") {
		t.Errorf("seeded engine still reports %q", sig.Reason)
	}
}

// ── instrument switch ──

func TestSwitchInstrument_RejectsBadSymbol(t *testing.T) {
	hist := &stubHistory{}
	e := New(testConfig("BTCUSDT"), hist, &capturePub{})

	for _, bad := range []string{"", "btcusdt", "BTC", "BTC-USDT", "AVERYLONGSYMBOLNAMEXX"} {
		if err := e.SwitchInstrument(context.Background(), bad); !errors.Is(err, ErrBadSymbol) {
			t.Errorf("symbol %q: err=%v, want ErrBadSymbol", bad, err)
		}
	}
	if hist.callCount() != 0 {
		t.Error("rejected symbols still hit the history provider")
	}
	if got := e.Symbol(); got != "BTCUSDT" {
		t.Errorf("active symbol changed to %s", got)
	}
}

func TestSwitchInstrument_SameSymbolIsNoOp(t *testing.T) {
	hist := &stubHistory{}
	e := New(testConfig("BTCUSDT"), hist, &capturePub{})

	if err := e.SwitchInstrument(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("same-symbol switch: %v", err)
	}
	if hist.callCount() != 0 {
		t.Error("same-symbol switch fetched history")
	}
}

func TestSwitchInstrument_ConcurrentSwitchRejected(t *testing.T) {
	hist := &stubHistory{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	for i := 0; i < 25; i++ {
		hist.candles = append(hist.candles, finalCandle("", i, 200+float64(i)))
	}
	pub := &capturePub{}
	e := New(testConfig("BTCUSDT"), hist, pub)

	done := make(chan error, 1)
	go func() {
		done <- e.SwitchInstrument(context.Background(), "ETHUSDT")
	}()
	<-hist.entered // first switch is mid-fetch

	if err := e.SwitchInstrument(context.Background(), "SOLUSDT"); !errors.Is(err, ErrSwitchInFlight) {
		t.Errorf("second switch err=%v, want ErrSwitchInFlight", err)
	}

	close(hist.release)
	if err := <-done; err != nil {
		t.Fatalf("first switch failed: %v", err)
	}
	if got := e.Symbol(); got != "ETHUSDT" {
		t.Errorf("active symbol=%s, want ETHUSDT", got)
	}
	if e.CurrentSignal() != nil {
		t.Error("stale signal survived the switch")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	found := false
	for _, n := range pub.notices {
		if n.Kind == "switch" && n.Symbol == "ETHUSDT" {
			found = true
		}
	}
	if !found {
		t.Error("no switch notice published")
	}
}

func TestSwitchInstrument_FailedFetchKeepsState(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	pub := &capturePub{}
	okHist := &stubHistory{}
	e := New(cfg, okHist, pub)
	e.OnCandle(finalCandle("BTCUSDT", 0, 100))
	before := e.CurrentSignal()

	e.history = &stubHistory{err: errors.New("exchange unavailable")}
	if err := e.SwitchInstrument(context.Background(), "ETHUSDT"); err == nil {
		t.Fatal("switch succeeded despite failed history fetch")
	}

	if got := e.Symbol(); got != "BTCUSDT" {
		t.Errorf("failed switch changed symbol to %s", got)
	}
	if e.CurrentSignal() != before {
		t.Error("failed switch disturbed the last signal")
	}

	// The in-flight guard must have been released.
	e.history = okHist
	okHist.candles = []model.Candle{finalCandle("", 0, 50)}
	if err := e.SwitchInstrument(context.Background(), "ETHUSDT"); err != nil {
		t.Errorf("retry after failed switch: %v", err)
	}
}

func TestSwitchInstrument_TimeoutBoundsFetch(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	cfg.SwitchTimeout = 20 * time.Millisecond
	hist := &slowHistory{delay: time.Second}
	e := New(cfg, hist, &capturePub{})

	start := time.Now()
	err := e.SwitchInstrument(context.Background(), "ETHUSDT")
	if err == nil {
		t.Fatal("switch succeeded despite slow provider")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("switch took %v, timeout did not bound the fetch", elapsed)
	}
	if got := e.Symbol(); got != "BTCUSDT" {
		t.Errorf("timed-out switch changed symbol to %s", got)
	}
}

// slowHistory honors context cancellation after a fixed delay.
type slowHistory struct {
	delay time.Duration
}

func (h *slowHistory) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	select {
	case <-time.After(h.delay):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
