package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"candlesignal/internal/engine"
	"candlesignal/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SignalService is the engine surface the REST layer needs.
type SignalService interface {
	Symbol() string
	CurrentSignal() *model.Signal
	SwitchInstrument(ctx context.Context, symbol string) error
}

// CandleReader serves archived candles for the history endpoint.
type CandleReader interface {
	RecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error)
}

// setCORS sets permissive CORS headers for the REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RegisterRoutes registers the WS endpoint and REST control surface.
// instruments is the switchable symbol list; candles may be nil when
// archiving is disabled.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, svc SignalService, instruments []string, candles CandleReader, processStart time.Time) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.Register(conn, r.URL.Query().Get("last_ts"))
	})

	// Latest evaluated signal, null before the first evaluation.
	mux.HandleFunc("/api/signal", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbol": svc.Symbol(),
			"signal": svc.CurrentSignal(),
		})
	})

	// Active instrument: GET to read, POST to switch.
	mux.HandleFunc("/api/instrument", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			setCORS(w)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]string{"symbol": svc.Symbol()})
		case http.MethodPost:
			var req struct {
				Symbol string `json:"symbol"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
				return
			}
			if err := svc.SwitchInstrument(r.Context(), req.Symbol); err != nil {
				writeJSON(w, switchStatus(err), map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "symbol": req.Symbol})
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
	})

	// Switchable instruments with the currently active one.
	mux.HandleFunc("/api/instruments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"instruments": instruments,
			"active":      svc.Symbol(),
		})
	})

	// Archived candles, oldest-first.
	mux.HandleFunc("/api/candles", func(w http.ResponseWriter, r *http.Request) {
		if candles == nil {
			writeJSON(w, http.StatusOK, []model.Candle{})
			return
		}
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			symbol = svc.Symbol()
		}
		limit := 200
		if s := r.URL.Query().Get("limit"); s != "" {
			if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
				limit = l
			}
		}
		rows, err := candles.RecentCandles(r.Context(), symbol, limit)
		if err != nil {
			log.Printf("[gateway] candle query: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "candle query failed"})
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	// Gap backfill: envelopes on channel with channel_seq > after.
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel is required"})
			return
		}
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		envelopes := hub.Missed(channel, after)

		raw := make([]json.RawMessage, len(envelopes))
		for i, e := range envelopes {
			raw[i] = e
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"channel":     channel,
			"channel_seq": hub.ChannelSeq(channel),
			"envelopes":   raw,
		})
	})

	// Latest payload per channel, for polling clients.
	mux.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.LatestAll())
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"symbol":     svc.Symbol(),
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// switchStatus maps switch failures onto HTTP statuses: malformed symbols
// are the caller's fault, an in-flight switch is a conflict, everything
// else is an upstream failure.
func switchStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrBadSymbol):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSwitchInFlight):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
