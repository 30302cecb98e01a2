package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EtfSentinel/internal/api"
	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/collector"
	"EtfSentinel/internal/config"
	"EtfSentinel/internal/importer"
	"EtfSentinel/internal/logger"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/notifier"
	"EtfSentinel/internal/scheduler"
	"EtfSentinel/internal/tracker"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	noCache := flag.Bool("no-cache", false, "Keep the portfolio and prices in memory only")
	flag.Parse()
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*cfgPath = v
	}

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		l := logger.New(logger.Config{})
		l.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Msg("EtfSentinel starting")

	// Init cache
	var store cache.Cache = cache.NewMemoryCache()
	if !*noCache {
		sc, err := cache.NewSQLiteCache(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite cache failed, using memory")
		} else {
			store = sc
		}
	}
	defer store.Close()

	// Init collector
	src := cfg.Sources
	col := collector.NewCollector(map[model.DataSource]collector.Fetcher{
		model.SourceBorsaItaliana: collector.NewBorsaItalianaFetcher(src.BorsaItaliana.BaseURL, src.BorsaItaliana.Token, cfg.Proxy),
		model.SourceJustETF:       collector.NewJustETFFetcher(src.JustETF.BaseURL, cfg.Proxy),
	}, store, log)
	col.MaxAge = src.MaxAge

	// Init tracker
	tm := tracker.NewManager(store, col, log)
	loaded, err := tm.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("restore portfolio")
	}
	// The configured document seeds an empty cache; later imports go through the API or etfctl.
	if !loaded && cfg.Portfolio != "" {
		if err := importPortfolio(tm, cfg.Portfolio); err != nil {
			log.Fatal().Err(err).Str("file", cfg.Portfolio).Msg("import portfolio")
		}
	}

	// Init notifier
	var n notifier.Notifier = notifier.LogNotifier{Log: log}
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		n = tn
	} else {
		log.Warn().Msg("telegram not configured, alerts are only logged")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, tm, n, store, log)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.DriftCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, refreshing prices now")
		go func() {
			sched.RunRefreshNow()
			sched.RunDriftCheckNow()
		}()
	}

	// Start HTTP API
	srv := api.New(api.Config{
		Addr:           cfg.HTTP.Addr,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Log:            log,
		Tracker:        tm,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	log.Info().Msg("EtfSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	cancel()
	log.Info().Msg("EtfSentinel stopped")
}

func importPortfolio(tm *tracker.Manager, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := importer.Parse(f)
	if err != nil {
		return err
	}
	return tm.SetPortfolio(p)
}
