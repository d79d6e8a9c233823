package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zonesniper/internal/cva"
	"zonesniper/internal/engine"
	"zonesniper/internal/history"
	"zonesniper/internal/logger"
	"zonesniper/internal/metrics"
	"zonesniper/internal/model"
	"zonesniper/internal/notification"
	"zonesniper/internal/pricefeed"
	redisstore "zonesniper/internal/store/redis"
	sqlitestore "zonesniper/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("zoneengine", slog.LevelInfo)
	log.Println("[zoneengine] starting...")

	// ---- Load config from env ----
	cfg := engine.LoadConfig()
	log.Printf("[zoneengine] tracking %d pairs: %v", len(cfg.Pairs), cfg.Pairs)

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Load candle history from the SQLite cache ----
	sqlReader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[zoneengine] sqlite init failed: %v (run the backfill tool first)", err)
	}
	hist, err := history.Load(sqlReader, cfg.Pairs, cfg.IntervalMinutes)
	if err != nil {
		log.Fatalf("[zoneengine] history load failed: %v", err)
	}
	health.SetSQLiteOK(true)
	log.Printf("[zoneengine] candle history loaded for %d pairs", len(hist.Pairs()))

	// ---- Connect the Redis publisher ----
	var publisher *redisstore.Publisher
	publisher, err = redisstore.NewPublisher(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[zoneengine] WARNING: redis init failed: %v (continuing without publishing)", err)
		health.SetRedisConnected(false)
	} else {
		health.SetRedisConnected(true)
		publisher.OnPublish = func(elapsed time.Duration) { prom.RedisPublishDur.Observe(elapsed.Seconds()) }
		defer publisher.Close()
	}

	// ---- Wire the calculation engine ----
	comp := cva.NewComputer(hist, history.RangeConfig{
		RelevancyThreshold: cfg.RelevancyThreshold,
		MinLookbackDays:    cfg.MinLookbackDays,
	}, cfg.ZoneCount, cfg.TimeDecayFactor)

	var events model.EventPublisher
	if publisher != nil {
		events = publisher
	}
	if notifier := buildNotifier(); notifier != nil {
		events = notification.NewEventAlerter(events, notifier)
	}
	eng := engine.New(cfg, comp, events, prom, health)
	eng.StartHTTP(ctx)

	// ---- Periodic liveness checks ----
	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), sqlReader.DB(), 15*time.Second)
		publisher.SubscribeConfig(ctx, func(payload string) {
			eng.Reload("config update: " + payload)
		})
	}

	// ---- Start the price feed ----
	feed := pricefeed.New(cfg.Pairs, eng.TickRing())
	feed.OnReconnect = func() {
		prom.WSReconnects.Inc()
		health.SetWSConnected(false)
	}
	feed.OnTick = func(tick model.PriceTick) {
		prom.TicksTotal.Inc()
		health.SetWSConnected(true)
		health.SetLastTickTime(tick.TS)
	}
	feed.OnDrop = func() {
		prom.DroppedTicks.Inc()
		prom.RingBufOverflow.Inc()
	}
	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[zoneengine] price feed stopped: %v", err)
		}
	}()

	// ---- Run the coordinator ----
	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("[zoneengine] engine stopped: %v", err)
		}
	}()

	log.Println("[zoneengine] all systems running. Press Ctrl+C to stop.")

	// ---- Graceful shutdown ----
	<-sigCh
	log.Println("[zoneengine] shutdown signal received")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	metricsSrv.Stop(shutCtx)
	sqlReader.Close()

	log.Println("[zoneengine] shutdown complete.")
}

// buildNotifier picks an alert backend from the environment, or nil when
// none is configured.
func buildNotifier() notification.Notifier {
	if token, chat := os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"); token != "" && chat != "" {
		log.Println("[zoneengine] zone alerts via Telegram")
		return notification.NewTelegramNotifier(token, chat)
	}
	if url := os.Getenv("ALERT_WEBHOOK_URL"); url != "" {
		log.Printf("[zoneengine] zone alerts via webhook %s", url)
		return notification.NewWebhookNotifier(url)
	}
	return nil
}
