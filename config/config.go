// Package config loads all application configuration from environment
// variables. Values are read once at startup; nothing consults the
// environment after Load returns.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"candlesignal/internal/engine"
	"candlesignal/internal/model"
)

// Config holds all application configuration.
type Config struct {
	// Instrument
	Symbol   string
	Interval string

	// Instruments is the switchable symbol list exposed on the control
	// surface. The active Symbol is always included.
	Instruments []string

	// Strategy
	EMAShort      int
	EMALong       int
	RSIPeriod     int
	RSIBuyCeiling float64
	RSISellFloor  float64
	StrictFilter  bool
	Confirmation  bool

	// History / buffer
	BufferCapacity int
	HistoryLimit   int

	// Risk offsets
	StopPct   float64
	TargetPct float64

	SwitchTimeout time.Duration

	// Upstream
	BinanceRESTBase string
	BinanceWSBase   string

	// Infrastructure
	ListenAddr    string
	MetricsAddr   string
	RedisAddr     string // empty disables the Redis mirror
	RedisPassword string
	SQLitePath    string // empty disables the candle archive
	LogLevel      string

	// Notifications (empty disables a backend)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible
// defaults and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Symbol:   getEnv("SYMBOL", "BTCUSDT"),
		Interval: getEnv("INTERVAL", "1m"),

		Instruments: getEnvSymbols("INSTRUMENTS", "BTCUSDT,ETHUSDT,BNBUSDT,SOLUSDT,XRPUSDT"),

		EMAShort:      getEnvInt("EMA_SHORT", 9),
		EMALong:       getEnvInt("EMA_LONG", 21),
		RSIPeriod:     getEnvInt("RSI_PERIOD", 14),
		RSIBuyCeiling: getEnvFloat("RSI_BUY_CEILING", 60),
		RSISellFloor:  getEnvFloat("RSI_SELL_FLOOR", 40),
		StrictFilter:  getEnvBool("STRICT_FILTER", false),
		Confirmation:  getEnvBool("CROSS_CONFIRMATION", true),

		BufferCapacity: getEnvInt("BUFFER_CAPACITY", 500),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 500),

		StopPct:   getEnvFloat("STOP_PCT", 0.005),
		TargetPct: getEnvFloat("TARGET_PCT", 0.015),

		SwitchTimeout: getEnvDuration("SWITCH_TIMEOUT", 10*time.Second),

		BinanceRESTBase: getEnv("BINANCE_REST_BASE", ""),
		BinanceWSBase:   getEnv("BINANCE_WS_BASE", ""),

		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !contains(cfg.Instruments, cfg.Symbol) {
		cfg.Instruments = append([]string{cfg.Symbol}, cfg.Instruments...)
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	if !model.ValidSymbol(c.Symbol) {
		return fmt.Errorf("config: SYMBOL %q is not a valid instrument symbol", c.Symbol)
	}
	if c.EMAShort <= 0 || c.EMALong <= 0 || c.EMAShort >= c.EMALong {
		return fmt.Errorf("config: EMA periods %d/%d: short must be positive and below long", c.EMAShort, c.EMALong)
	}
	if c.RSIPeriod <= 0 {
		return fmt.Errorf("config: RSI_PERIOD must be positive, got %d", c.RSIPeriod)
	}
	if c.BufferCapacity < c.EMALong {
		return fmt.Errorf("config: BUFFER_CAPACITY %d below EMA_LONG %d", c.BufferCapacity, c.EMALong)
	}
	if c.StopPct <= 0 || c.TargetPct <= 0 {
		return fmt.Errorf("config: STOP_PCT and TARGET_PCT must be positive")
	}
	return nil
}

// Engine maps the loaded configuration onto the engine's tunables.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Symbol:         c.Symbol,
		Interval:       c.Interval,
		EMAShort:       c.EMAShort,
		EMALong:        c.EMALong,
		RSIPeriod:      c.RSIPeriod,
		RSIBuyCeiling:  c.RSIBuyCeiling,
		RSISellFloor:   c.RSISellFloor,
		StrictFilter:   c.StrictFilter,
		Confirmation:   c.Confirmation,
		BufferCapacity: c.BufferCapacity,
		HistoryLimit:   c.HistoryLimit,
		StopPct:        c.StopPct,
		TargetPct:      c.TargetPct,
		SwitchTimeout:  c.SwitchTimeout,
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// getEnvSymbols parses a comma-separated symbol list, skipping entries
// that fail symbol validation.
func getEnvSymbols(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" {
			continue
		}
		if !model.ValidSymbol(sym) {
			log.Printf("[config] skipping invalid symbol in %s: %q", key, part)
			continue
		}
		out = append(out, sym)
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
