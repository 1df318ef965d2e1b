package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"candlesignal/config"
	"candlesignal/internal/binance"
	"candlesignal/internal/engine"
	"candlesignal/internal/gateway"
	"candlesignal/internal/logger"
	"candlesignal/internal/metrics"
	"candlesignal/internal/model"
	"candlesignal/internal/notification"
	redisstore "candlesignal/internal/store/redis"
	sqlitestore "candlesignal/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[engine] starting...")

	// ---- Load .env + config ----
	if err := godotenv.Load(); err != nil {
		log.Println("[engine] no .env file, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[engine] config: %v", err)
	}
	logger.Init("candlesignal", logger.ParseLevel(cfg.LogLevel))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus(cfg.RedisAddr != "", cfg.SQLitePath != "")
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Candle archive (off hot path) ----
	var archive *sqlitestore.Archive
	var archiveCh chan model.Candle
	if cfg.SQLitePath != "" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		archive, err = sqlitestore.New(sqlitestore.ArchiveConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Fatalf("[engine] sqlite init failed: %v", err)
		}
		defer archive.Close()
		archiveCh = make(chan model.Candle, 5000)
		go archive.Run(ctx, archiveCh)
		log.Println("[engine] candle archive ready")
	}

	// ---- Redis mirror (optional) ----
	var mirror *redisstore.Mirror
	if cfg.RedisAddr != "" {
		mirror, err = redisstore.New(redisstore.MirrorConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[engine] WARNING: redis init failed: %v (continuing without mirror)", err)
			mirror = nil
		} else {
			defer mirror.Close()
			log.Println("[engine] redis mirror ready")
		}
	}

	// ---- Liveness checks ----
	switch {
	case mirror != nil && archive != nil:
		health.StartLivenessChecker(ctx, mirror.Client(), archive.DB(), 10*time.Second)
	case mirror != nil:
		health.StartLivenessChecker(ctx, mirror.Client(), nil, 10*time.Second)
	case archive != nil:
		health.StartLivenessChecker(ctx, nil, archive.DB(), 10*time.Second)
	}

	// ---- Push surface ----
	hub := gateway.NewHub()
	hub.OnClientChange = func(count int) {
		prom.WSClients.Set(float64(count))
	}

	// ---- Notifications ----
	var notifiers []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(notifiers) == 0 {
		notifiers = append(notifiers, notification.NewLogNotifier())
	}
	alerts := notification.NewDispatcher(notifiers...)

	pub := &fanoutPublisher{
		targets: publishers(hub, mirror),
		alerts:  alerts,
		prom:    prom,
	}

	// ---- Engine + upstream ----
	rest := binance.NewRESTClient(cfg.BinanceRESTBase)
	eng := engine.New(cfg.Engine(), rest, pub)
	if archiveCh != nil {
		eng.SetArchive(archiveCh)
	}
	eng.SetHooks(engine.Hooks{
		Evaluated: func(decision model.Decision, dur time.Duration) {
			prom.SignalsTotal.WithLabelValues(string(decision)).Inc()
			prom.EvalDur.Observe(dur.Seconds())
		},
		PatternMatched: func(kind model.PatternKind) {
			prom.PatternsTotal.WithLabelValues(string(kind)).Inc()
		},
		CandleClosed: func() {
			prom.CandlesTotal.Inc()
			health.SetLastCandleTime(time.Now())
			health.SetStreamConnected(true)
		},
		Provisional: func() {
			prom.ProvisionalUpdates.Inc()
			health.SetStreamConnected(true)
		},
	})

	stream := binance.NewStream(binance.StreamConfig{
		BaseURL:  cfg.BinanceWSBase,
		Interval: cfg.Interval,
	}, cfg.Symbol, eng.OnCandle, eng.Seed)
	stream.OnReconnect = func() {
		prom.StreamReconnects.Inc()
		health.SetStreamConnected(false)
	}
	eng.SetStream(stream)

	go func() {
		if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[engine] stream stopped: %v", err)
		}
	}()

	// ---- HTTP API ----
	mux := http.NewServeMux()
	var candles gateway.CandleReader
	if archive != nil {
		candles = archive
	}
	gateway.RegisterRoutes(mux, hub, eng, cfg.Instruments, candles, time.Now())
	apiSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[engine] api listening on %s", cfg.ListenAddr)
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[engine] api server: %v", err)
		}
	}()

	log.Printf("[engine] ready: %s %s EMA(%d/%d) RSI(%d) confirmation=%t",
		cfg.Symbol, cfg.Interval, cfg.EMAShort, cfg.EMALong, cfg.RSIPeriod, cfg.Confirmation)

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[engine] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[engine] shutdown complete.")
}

func publishers(hub *gateway.Hub, mirror *redisstore.Mirror) []model.Publisher {
	out := []model.Publisher{hub}
	if mirror != nil {
		out = append(out, mirror)
	}
	return out
}

// fanoutPublisher forwards engine events to every sink, fires external
// alerts for actionable signals and counts completed instrument switches.
type fanoutPublisher struct {
	targets []model.Publisher
	alerts  *notification.Dispatcher
	prom    *metrics.Metrics
}

func (p *fanoutPublisher) PublishPrice(u model.PriceUpdate) {
	for _, t := range p.targets {
		t.PublishPrice(u)
	}
}

func (p *fanoutPublisher) PublishSignal(s model.Signal) {
	for _, t := range p.targets {
		t.PublishSignal(s)
	}
	p.alerts.SignalFired(s)
}

func (p *fanoutPublisher) PublishNotice(n model.Notice) {
	if n.Kind == "switch" {
		p.prom.InstrumentSwitches.Inc()
	}
	for _, t := range p.targets {
		t.PublishNotice(n)
	}
}
