package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swing-systemv1/config"
	"swing-systemv1/internal/chart"
	"swing-systemv1/internal/gateway"
	"swing-systemv1/internal/jobs"
	"swing-systemv1/internal/logger"
	"swing-systemv1/internal/measure"
	"swing-systemv1/internal/metrics"
	"swing-systemv1/internal/notification"
	redisstore "swing-systemv1/internal/store/redis"
	"swing-systemv1/internal/store/sqlite"
	"swing-systemv1/internal/swing"
	"swing-systemv1/internal/task"
	"swing-systemv1/internal/timeframe"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[server] starting...")

	cfg := config.Load()
	logger.Init("swing-server", slog.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := buildNotifier(cfg)

	// SQLite is the system of record; refuse to start without it.
	store, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[server] sqlite open failed: %v", err)
	}
	defer store.Close()
	log.Printf("[server] sqlite ready at %s", cfg.SQLitePath)

	// Redis is optional: without it there is no push progress and no
	// last-price fallback, but jobs and polling still work.
	var cache *redisstore.Cache
	if c, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}); err != nil {
		log.Printf("[server] WARNING: redis unavailable, falling back to polling: %v", err)
		notifier.Send(ctx, notification.NetworkFailure("redis", err.Error()))
	} else {
		cache = c
		defer cache.Close()
		log.Printf("[server] redis connected at %s", cfg.RedisAddr)
	}

	met := metrics.New()

	symbols := cfg.ParseSymbols()
	tfs := cfg.ParseTFs()
	if len(tfs) == 0 {
		tfs = timeframe.All()
	}
	bands := cfg.ParseBands()

	mainSymbol := "XAUUSD"
	if len(symbols) > 0 {
		mainSymbol = symbols[0]
	}

	canvas := chart.NewCanvas()

	var lastPrice measure.LastPriceFunc
	if cache != nil {
		lastPrice = func(ctx context.Context) (float64, bool) {
			return cache.LatestPrice(ctx, mainSymbol)
		}
	} else {
		lastPrice = func(ctx context.Context) (float64, bool) {
			price, ok, err := store.LatestClose(ctx, mainSymbol)
			return price, err == nil && ok
		}
	}

	measureEngine := measure.NewEngine(measure.Config{
		SeriesID:    "candles",
		Timeframe:   tfs[0],
		Band:        bands[mainSymbol],
		SettleDelay: 100 * time.Millisecond,
	}, canvas, canvas, lastPrice, nil)

	swingEngine := swing.NewEngine(canvas)

	var pub jobs.Publisher
	if cache != nil {
		pub = cache
	}
	manager := jobs.NewManager(ctx, store, pub, met)
	manager.Notifier = notifier

	var progress task.ProgressSource
	if cache != nil {
		progress = cache.ProgressSource()
	}

	hub := gateway.NewHub(met)
	srv := &gateway.Server{
		Store:      store,
		Manager:    manager,
		Hub:        hub,
		Measure:    measureEngine,
		Swing:      swingEngine,
		Canvas:     canvas,
		Progress:   progress,
		Timeframes: tfs,
		Symbols:    symbols,
		Met:        met,
		Start:      time.Now(),
	}

	health := metrics.NewHealthStatus()
	if cache != nil {
		health.StartLivenessChecker(ctx, cache.Client(), store.DB(), 10*time.Second)
	} else {
		health.RedisConnected = false
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}
	go metrics.Serve(cfg.MetricsAddr, health)

	httpSrv := &http.Server{Addr: cfg.GatewayAddr, Handler: srv.Routes()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[server] serving at http://localhost%s", cfg.GatewayAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[server] server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[server] shutting down...")
	cancel()
	hub.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	switch {
	case cfg.TelegramBotToken != "" && cfg.TelegramChatID != "":
		log.Println("[server] alerts via telegram")
		return notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	case cfg.AlertWebhookURL != "":
		log.Printf("[server] alerts via webhook %s", cfg.AlertWebhookURL)
		return notification.NewWebhookNotifier(cfg.AlertWebhookURL)
	default:
		return notification.NewLogNotifier()
	}
}
