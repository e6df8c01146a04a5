package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/atlas-alert/hazard-engine/internal/adapter/httpapi"
	kafkaadapter "github.com/atlas-alert/hazard-engine/internal/adapter/kafka"
	"github.com/atlas-alert/hazard-engine/internal/adapter/nominatim"
	"github.com/atlas-alert/hazard-engine/internal/adapter/openai"
	"github.com/atlas-alert/hazard-engine/internal/adapter/openmeteo"
	"github.com/atlas-alert/hazard-engine/internal/adapter/sqlite"
	"github.com/atlas-alert/hazard-engine/internal/classify"
	"github.com/atlas-alert/hazard-engine/internal/cluster"
	"github.com/atlas-alert/hazard-engine/internal/config"
	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/engine"
	"github.com/atlas-alert/hazard-engine/internal/forecast"
	"github.com/atlas-alert/hazard-engine/internal/ingest"
	"github.com/atlas-alert/hazard-engine/internal/observability"
	"github.com/atlas-alert/hazard-engine/internal/zone"
)

// logNotifier records evacuation alerts in the service log. A real delivery
// channel (SMS, push) plugs in here once the platform's notifier service
// exposes one.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Send(_ context.Context, channel, target, message string) error {
	n.logger.Warn("evacuation alert", "channel", channel, "zone", target, "message", message)
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer store.Close()

	// Geocoding resolves named locations on signals without coordinates
	// (feature-flagged via GEOCODING_ENABLED).
	var geocoder domain.Geocoder
	if cfg.GeocodingEnabled {
		geocoder = nominatim.NewClient(cfg.GeocoderAgent, cfg.GeocoderTimeout, logger)
		logger.Info("nominatim geocoding enabled", "timeout", cfg.GeocoderTimeout)
	} else {
		logger.Info("geocoding disabled")
	}

	// Text classification: trained model when a key is present, keyword
	// heuristic otherwise. The trained path always degrades to the
	// heuristic on model failure.
	var textClassifier domain.TextClassifier = classify.TextHeuristic{}
	if cfg.OpenAIKey != "" {
		trained := openai.NewClassifier(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, logger)
		textClassifier = classify.TextFallback{
			Primary:   trained,
			Secondary: classify.TextHeuristic{},
			Logger:    logger,
		}
		logger.Info("trained text classifier enabled")
	} else {
		logger.Info("trained text classifier disabled, using keyword heuristic")
	}

	weather := openmeteo.NewCachedProvider(
		openmeteo.NewClient(cfg.WeatherTimeout, logger),
		cfg.WeatherCacheSize, cfg.WeatherCacheTTL)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	forecaster := forecast.New(weather, nil)

	zoneParams := zone.DefaultParams()
	zoneParams.AutoAlertThreshold = cfg.AutoAlertThreshold
	zoneParams.TTL = cfg.ZoneTTL

	eng := engine.New(engine.Options{
		Store:      store,
		Normalizer: ingest.NewNormalizer(textClassifier, classify.ImageHeuristic{}, geocoder, logger),
		Clusterer: cluster.New(cluster.Params{
			EpsilonMeters: cfg.ClusterEpsilonMeters,
			MinPoints:     cfg.ClusterMinPoints,
			MinConfidence: cfg.ClusterMinConfidence,
			Window:        cfg.ClusterWindow,
		}),
		Zones:      zone.NewManager(store, zoneParams),
		Forecaster: forecaster,
		Publisher:  writer,
		Notifier:   logNotifier{logger},
		Logger:     logger,
		Metrics:    metrics,
		Window:     cfg.ClusterWindow,
	})

	loop := engine.NewLoop(eng, reader, cfg.IngestWorkers, cfg.BatchSize)
	srv := httpapi.NewServer(cfg.HTTPAddr, eng, loop, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduled clustering and zone expiry sweeps.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ClusterSchedule, func() {
		if _, err := eng.RunClustering(ctx); err != nil {
			logger.Error("scheduled clustering failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid cluster schedule", "error", err, "schedule", cfg.ClusterSchedule)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		if err := eng.SweepZones(ctx); err != nil {
			logger.Error("zone sweep failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid sweep schedule", "error", err, "schedule", cfg.SweepSchedule)
		os.Exit(1)
	}
	scheduler.Start()

	// Model retraining loop consumes verification outcomes.
	go forecaster.Run(ctx)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest loop.
	go func() {
		if err := loop.Run(ctx); err != nil {
			logger.Error("ingest loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
