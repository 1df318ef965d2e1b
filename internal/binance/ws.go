package binance

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"candlesignal/internal/model"
)

const (
	// DefaultWSBase is the public spot stream endpoint.
	DefaultWSBase = "wss://stream.binance.com:9443"

	defaultReconnectDelay = 3 * time.Second

	// readWait bounds silence on the socket; the exchange pings well within
	// this window on a healthy connection.
	readWait = 3 * time.Minute
)

// StreamConfig configures the kline stream.
type StreamConfig struct {
	BaseURL        string // DefaultWSBase when empty
	Interval       string
	ReconnectDelay time.Duration // fixed delay between attempts, default 3s
}

// Stream maintains one kline subscription with automatic reconnect. Before
// every (re)subscribe it runs the reseed callback so the downstream buffer
// never carries a gap from the disconnected window.
type Stream struct {
	cfg      StreamConfig
	onCandle func(model.Candle)
	reseed   func(ctx context.Context) error

	// OnReconnect fires once per reconnect attempt after the first connect.
	OnReconnect func()

	mu     sync.Mutex
	symbol string
	conn   *websocket.Conn
}

// NewStream creates a stream for symbol. onCandle receives every kline
// update, provisional and final; reseed is invoked before each subscribe.
func NewStream(cfg StreamConfig, symbol string, onCandle func(model.Candle), reseed func(ctx context.Context) error) *Stream {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWSBase
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	return &Stream{
		cfg:      cfg,
		symbol:   symbol,
		onCandle: onCandle,
		reseed:   reseed,
	}
}

// Switch retargets the stream to a new symbol. The current connection is
// closed; the run loop reseeds and resubscribes under the new symbol.
func (s *Stream) Switch(symbol string) {
	s.mu.Lock()
	s.symbol = symbol
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Run connects and streams until ctx is cancelled. Connection loss is
// handled with a fixed-delay reconnect, never an exit.
func (s *Stream) Run(ctx context.Context) error {
	first := true
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !first {
			if s.OnReconnect != nil {
				s.OnReconnect()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ReconnectDelay):
			}
		}
		first = false

		if err := s.reseed(ctx); err != nil {
			log.Printf("[binance] reseed before subscribe: %v", err)
			continue
		}

		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[binance] stream disconnected: %v", err)
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	s.mu.Lock()
	symbol := s.symbol
	s.mu.Unlock()

	url := s.cfg.BaseURL + "/ws/" + strings.ToLower(symbol) + "@kline_" + s.cfg.Interval
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	log.Printf("[binance] subscribed %s kline_%s", symbol, s.cfg.Interval)

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		conn.Close()
	}()

	// Close the socket on cancellation so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		var ev wsKlineEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Printf("[binance] kline decode: %v", err)
			continue
		}
		if ev.EventType != "kline" {
			continue
		}
		candle, err := ev.Candle()
		if err != nil {
			log.Printf("[binance] kline parse: %v", err)
			continue
		}
		s.onCandle(candle)
	}
}
