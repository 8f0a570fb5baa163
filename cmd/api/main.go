package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"deckgen/internal/bootstrap"
	"deckgen/internal/http/handlers"
	httpapi "deckgen/internal/http/httpapi"
	"deckgen/internal/infra"
	"deckgen/internal/infra/geoip"
	"deckgen/internal/middleware"
	"deckgen/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: build runtime")
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error().Err(err).Msg("api: release resources")
		}
	}()

	// Single replica per store: every non-terminal job is this process's orphan.
	if n, err := rt.Jobs.RecoverInterrupted(ctx); err != nil {
		logger.Error().Err(err).Msg("api: recover interrupted jobs")
	} else if n > 0 {
		logger.Warn().Int("jobs", n).Msg("api: failed jobs left over from a previous run")
	}

	provider := rt.Generator.Provider()
	if provider == "synthetic" {
		logger.Warn().Msg("api: no generation provider configured, decks use synthetic content")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}
	defer resolver.Close()

	dispatcher := pipeline.NewDispatcher(ctx, rt.Orchestrator, logger)
	app := handlers.NewApp(rt.Jobs, dispatcher, rt.Artifacts, provider, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   middleware.CountryLookup(resolver.Lookup()),
		HTTPObserver:    rt.Metrics,
		MetricsHandler:  rt.Metrics.Handler(),
	})
	server := infra.NewHTTPServer(cfg, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Str("provider", provider).Msg("api: listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: shutdown http server")
		}
		// Running decks get the stage timeout to finish before they are cancelled.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.StageTimeout)
		defer cancelDrain()
		if err := dispatcher.Shutdown(drainCtx); err != nil {
			logger.Warn().Err(err).Msg("api: cancelled unfinished deck runs")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api: http server failed")
	}
	logger.Info().Msg("api: stopped")
}
