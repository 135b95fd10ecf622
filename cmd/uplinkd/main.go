package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/uplink/internal/config"
	"github.com/ent0n29/uplink/internal/httpapi"
	"github.com/ent0n29/uplink/internal/observability"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/uplink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("uplinkd exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	catalog, err := persona.LoadCatalog(cfg.PersonaCatalogPath)
	if err != nil {
		return fmt.Errorf("persona catalog: %w", err)
	}
	if cfg.PersonaDefaultID != "" && !catalog.Has(cfg.PersonaDefaultID) {
		return fmt.Errorf("PERSONA_DEFAULT_ID %q is not in the persona catalog", cfg.PersonaDefaultID)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace, cfg.StageWindowSize)

	transport, err := uplink.NewTransport(uplink.Config{
		Mode:     cfg.UplinkMode,
		BaseURL:  cfg.UplinkBaseURL,
		ChatPath: cfg.UplinkChatPath,
		Timeout:  cfg.UplinkTimeout,
	})
	if err != nil {
		return fmt.Errorf("uplink transport: %w", err)
	}
	if cfg.UplinkMode == uplink.ModeMock {
		logger.Warn("uplink running against the mock engine; replies are synthetic")
	}

	service := uplink.NewService(transport,
		uplink.WithLogger(logger.Named("uplink")),
		uplink.WithMetrics(metrics),
		uplink.WithFormatHint(cfg.UplinkFormatHint),
	)

	api := httpapi.New(cfg, catalog, service, metrics, logger.Named("http"))
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("addr", cfg.BindAddr),
			zap.String("uplink_mode", cfg.UplinkMode),
			zap.Int("personas", catalog.Len()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = httpServer.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
