// Package redis mirrors engine events into Redis: latest-state keys for
// cold-start reads by other services and PubSub channels for cross-process
// subscribers. The in-process WebSocket hub stays the primary push path;
// the mirror is optional and failures only log.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"candlesignal/internal/model"
)

const (
	latestTTL    = 30 * time.Minute
	writeTimeout = 2 * time.Second
)

// MirrorConfig configures the Redis connection.
type MirrorConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Mirror writes latest-state keys and PubSub messages. Implements
// model.Publisher.
type Mirror struct {
	client *goredis.Client
}

// Client returns the underlying client for health checks.
func (m *Mirror) Client() *goredis.Client { return m.client }

// New connects and pings the server.
func New(cfg MirrorConfig) (*Mirror, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Mirror{client: client}, nil
}

// PublishPrice mirrors a price update. Provisional updates are PubSub-only;
// the latest key is reserved for closed candles.
func (m *Mirror) PublishPrice(p model.PriceUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	payload := string(p.JSON())
	if !p.IsFinal {
		if err := m.client.Publish(ctx, "pub:price:"+p.Symbol, payload).Err(); err != nil {
			log.Printf("[redis] publish price: %v", err)
		}
		return
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, "price:latest:"+p.Symbol, payload, latestTTL)
	pipe.Publish(ctx, "pub:price:"+p.Symbol, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] price pipeline for %s: %v", p.Symbol, err)
	}
}

// PublishSignal mirrors an evaluated signal: SET latest + PUBLISH.
func (m *Mirror) PublishSignal(s model.Signal) {
	m.setAndPublish("signal:latest:"+s.Symbol, "pub:signal:"+s.Symbol, s)
}

// PublishNotice mirrors a notice. Notices are transient, PubSub only.
func (m *Mirror) PublishNotice(n model.Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[redis] marshal notice: %v", err)
		return
	}
	if err := m.client.Publish(ctx, "pub:notice:"+n.Symbol, string(payload)).Err(); err != nil {
		log.Printf("[redis] publish notice: %v", err)
	}
}

func (m *Mirror) setAndPublish(latestKey, channel string, v interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[redis] marshal for %s: %v", latestKey, err)
		return
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, latestKey, string(payload), latestTTL)
	pipe.Publish(ctx, channel, string(payload))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] pipeline for %s: %v", latestKey, err)
	}
}

// LatestSignal reads back the mirrored signal for symbol, goredis.Nil-safe.
func (m *Mirror) LatestSignal(ctx context.Context, symbol string) (*model.Signal, error) {
	raw, err := m.client.Get(ctx, "signal:latest:"+symbol).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET signal:latest:%s: %w", symbol, err)
	}
	var s model.Signal
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode mirrored signal: %w", err)
	}
	return &s, nil
}

// Close closes the client.
func (m *Mirror) Close() error {
	return m.client.Close()
}
