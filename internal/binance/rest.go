// Package binance is the exchange edge: REST history fetch and the live
// kline WebSocket stream, both normalized to internal candles.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"candlesignal/internal/model"
)

const (
	// DefaultRESTBase is the public spot REST endpoint.
	DefaultRESTBase = "https://api.binance.com"

	maxKlineLimit = 1000
)

// RESTClient fetches closed klines over HTTP. Implements model.HistoryProvider.
type RESTClient struct {
	base string
	hc   *http.Client
}

// NewRESTClient creates a client against base (DefaultRESTBase when empty).
func NewRESTClient(base string) *RESTClient {
	if base == "" {
		base = DefaultRESTBase
	}
	return &RESTClient{
		base: base,
		hc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchKlines returns up to limit closed candles for symbol/interval,
// oldest-first. The exchange caps limit at 1000.
func (c *RESTClient) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.base + "/api/v3/klines?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("klines request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("klines fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("klines fetch %s: status %d: %s", symbol, resp.StatusCode, body)
	}

	var rows [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("klines decode %s: %w", symbol, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseKlineRow(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("klines row %d: %w", i, err)
		}
		candles = append(candles, c)
	}

	// The trailing row may still be the forming kline; history must only
	// contain closed candles.
	if n := len(candles); n > 0 {
		now := time.Now().UnixMilli()
		if d := intervalMillis(interval); d > 0 && candles[n-1].OpenTime+d > now {
			candles = candles[:n-1]
		}
	}

	log.Printf("[binance] fetched %d klines for %s %s", len(candles), symbol, interval)
	return candles, nil
}

// intervalMillis maps an exchange interval string to its duration in
// milliseconds. Unknown intervals return 0, which disables the trailing-row
// trim rather than guessing.
func intervalMillis(interval string) int64 {
	if len(interval) < 2 {
		return 0
	}
	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	switch interval[len(interval)-1] {
	case 's':
		return n * 1000
	case 'm':
		return n * 60_000
	case 'h':
		return n * 3_600_000
	case 'd':
		return n * 86_400_000
	case 'w':
		return n * 7 * 86_400_000
	default:
		return 0
	}
}
