package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/example/tripview/internal/config"
	"github.com/example/tripview/internal/httpapi"
	"github.com/example/tripview/internal/ingest"
	"github.com/example/tripview/internal/logging"
	"github.com/example/tripview/internal/mapview"
	"github.com/example/tripview/internal/overlay"
	"github.com/example/tripview/internal/push"
	"github.com/example/tripview/internal/reconciler"
	"github.com/example/tripview/internal/resolver"
	"github.com/example/tripview/internal/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	state := mapview.NewState()
	viewers := push.NewRegistry(logger)
	state.SetMutationHook(func(op mapview.Op) {
		viewers.Broadcast(push.Update{Type: "overlay_op", Op: &op})
	})

	var cache routing.GeometryCache
	if cfg.RedisAddr != "" {
		rc := routing.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.GeometryCacheTTL)
		defer rc.Close()
		cache = rc
		logger.Info("geometry cache backed by redis", "addr", cfg.RedisAddr)
	} else {
		cache = routing.NewCache(cfg.GeometryCacheTTL)
	}

	var directions routing.DirectionsClient
	if cfg.RoutingAPIKey != "" {
		directions = routing.NewORSClient(cfg.RoutingEndpoint, cfg.RoutingAPIKey)
	} else {
		logger.Warn("no routing api key set, external routing disabled")
	}

	loader := reconciler.NewLoader()
	res := resolver.New(directions, routing.NewGuard(cfg.RateLimitCooldown), cache, logger)
	res.Loader = loader

	var sink reconciler.EventSink
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		sink = producer
	}

	rec := reconciler.New(reconciler.Options{
		Fetcher:              reconciler.NewFetcher(cfg.SnapshotEndpoint, nil),
		Resolver:             res,
		Overlay:              overlay.New(state, logger),
		Loader:               loader,
		Events:               sink,
		Logger:               logger,
		DriverID:             cfg.DriverID,
		PollInterval:         cfg.PollInterval,
		CompleteStopEndpoint: cfg.CompleteStopEndpoint,
	})
	if err := rec.Start(); err != nil {
		log.Fatalf("reconciler: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(rec, state, viewers, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("tripview listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	rec.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
