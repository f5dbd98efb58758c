package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quoteflow/config"
	"quoteflow/internal/archive"
	"quoteflow/internal/catalog"
	"quoteflow/internal/control"
	"quoteflow/internal/discovery"
	"quoteflow/internal/fetch"
	"quoteflow/internal/metrics"
	"quoteflow/internal/sink"
	"quoteflow/internal/streamer"
	"quoteflow/internal/venues"
	"quoteflow/internal/venues/binance"
	"quoteflow/logger"
	"quoteflow/models"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Quoteflow.Name,
		"version": cfg.Quoteflow.Version,
	}).Info("starting quoteflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Region, cfg.Metrics.Namespace)
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to open market catalog store")
		os.Exit(1)
	}
	defer store.Close()

	httpClient := fetch.NewClient()
	if cfg.Metrics.UsedWeight && cfg.Venues.Binance.Enabled {
		tracker := binance.NewWeightTracker(log)
		if limit, err := tracker.FetchLimit(ctx); err != nil {
			log.WithError(err).Warn("could not fetch binance request weight limit")
		} else {
			log.WithFields(logger.Fields{"limit": limit}).Info("binance request weight limit")
		}
		httpClient.OnResponse = tracker.Observe
	}

	adapters := venues.Build(cfg, httpClient, log)
	if len(adapters) == 0 {
		log.Error("no venues enabled")
		os.Exit(1)
	}
	defer func() {
		for _, a := range adapters {
			a.Close()
		}
	}()

	tickSink, closeSinks := buildSinks(cfg, log)
	defer closeSinks()

	marketStreamer := streamer.New(adapters, tickSink, log)
	defer marketStreamer.Close()

	sources := make([]discovery.VenueSource, 0, len(adapters))
	statsClients := make([]models.VenueStatsClient, 0, len(adapters))
	for _, a := range adapters {
		sources = append(sources, discovery.VenueSource{Venue: a.Code, Client: a.Discovery})
		statsClients = append(statsClients, a.Stats)
	}
	stats := discovery.NewCompositeStats(statsClients, log)
	orchestrator := discovery.NewOrchestrator(sources, stats, store, cfg.Discovery, log)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		orchestrator.Run(ctx, marketStreamer.Apply)
	}()

	controlServer := control.NewServer(cfg.Server.Addr, orchestrator, marketStreamer.Apply, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		controlServer.Start()
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := controlServer.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Warn("control server shutdown failed")
	}

	log.Info("stopping streams")
	marketStreamer.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("quoteflow stopped")
}

// openStore prefers Postgres when a DSN is configured and falls back to
// the in-memory catalog otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Log) (catalog.Store, error) {
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		return catalog.OpenPostgres(ctx, dsn)
	}
	log.WithComponent("main").Warn("no postgres DSN configured, using in-memory catalog")
	return catalog.NewMemory(), nil
}

// buildSinks assembles the tick fan-out: redis publisher and parquet
// archiver, each optional.
func buildSinks(cfg *config.Config, log *logger.Log) (models.TickHandler, func()) {
	var handlers []models.TickHandler
	var closers []func()

	if cfg.Publish.Enabled {
		publisher := sink.NewRedisPublisher(cfg.Publish, log)
		handlers = append(handlers, publisher)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Warn("redis publisher close failed")
			}
		})
	}

	if cfg.Archive.Enabled {
		archiver, err := archive.NewArchiver(cfg.Archive, log)
		if err != nil {
			log.WithError(err).Error("failed to create tick archiver")
			os.Exit(1)
		}
		handlers = append(handlers, archiver)
		closers = append(closers, archiver.Close)
	}

	if len(handlers) == 0 {
		log.WithComponent("main").Info("no tick sinks enabled, ticks are decoded and discarded")
	}

	return sink.NewMulti(handlers...), func() {
		for _, c := range closers {
			c()
		}
	}
}
