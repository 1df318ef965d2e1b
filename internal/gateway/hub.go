// Package gateway is the push surface: a WebSocket hub fanning out price,
// signal and notice events, plus the REST control endpoints.
//
// The hub implements model.Publisher so the engine stays unaware of the
// transport. Every event is wrapped in an envelope carrying a global and a
// per-channel sequence number; clients detect gaps from channel_seq and
// backfill over the /api/missed endpoint.
package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"candlesignal/internal/model"
)

// Hub manages WebSocket clients and event fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// latest keeps the most recent payload per channel for initial state.
	latest map[string]latestEntry

	seq         int64
	channelSeqs map[string]int64
	replay      map[string]*ReplayLog

	// OnClientChange reports the connected-client count; optional.
	OnClientChange func(count int)
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replay:      make(map[string]*ReplayLog),
	}
}

// ── model.Publisher ──

func (h *Hub) PublishPrice(p model.PriceUpdate) {
	h.Broadcast("price:"+p.Symbol, p.JSON())
}

func (h *Hub) PublishSignal(s model.Signal) {
	payload, err := json.Marshal(s)
	if err != nil {
		log.Printf("[gateway] marshal signal: %v", err)
		return
	}
	h.Broadcast("signal:"+s.Symbol, payload)
}

func (h *Hub) PublishNotice(n model.Notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[gateway] marshal notice: %v", err)
		return
	}
	h.Broadcast("notice:"+n.Symbol, payload)
}

// ── client management ──

// Register wraps an upgraded connection into a managed client and starts its
// pumps.
func (h *Hub) Register(conn *websocket.Conn, lastTS string) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]bool),
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClientChange != nil {
		h.OnClientChange(count)
	}

	go client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)

	log.Printf("[gateway] ws client disconnected (%d total)", count)
	if h.OnClientChange != nil {
		h.OnClientChange(count)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ── replay / state queries ──

// LatestAll returns the most recent payload per channel.
func (h *Hub) LatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// Missed returns buffered envelopes on channel with channel_seq > afterSeq.
func (h *Hub) Missed(channel string, afterSeq int64) [][]byte {
	h.mu.RLock()
	rl := h.replay[channel]
	h.mu.RUnlock()
	if rl == nil {
		return nil
	}
	return rl.Since(afterSeq)
}

// ChannelSeq returns the current sequence number for channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}
