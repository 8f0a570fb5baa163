// Package bootstrap assembles the deck service from configuration. Both the
// API server and the command line tool build their runtime here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"deckgen/internal/adapter/repo"
	"deckgen/internal/domain"
	"deckgen/internal/events"
	"deckgen/internal/fit"
	"deckgen/internal/infra"
	"deckgen/internal/infra/credentials"
	"deckgen/internal/jobs"
	"deckgen/internal/metrics"
	"deckgen/internal/pipeline"
	"deckgen/internal/providers/genai"
	"deckgen/internal/render"
	"deckgen/internal/storage"
)

// Runtime is the wired service. Close releases every connection it opened.
type Runtime struct {
	Config       *infra.Config
	Jobs         *jobs.Machine
	Orchestrator *pipeline.Orchestrator
	Artifacts    domain.ArtifactStore
	Generator    *genai.Service
	Metrics      *metrics.Metrics
	Publisher    events.Publisher
	Credentials  *credentials.Store

	closers []func() error
}

// Build connects the stores selected by cfg and wires the pipeline.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Metrics: metrics.New()}
	if err := rt.build(ctx, cfg, logger); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) error {
	jobRepo, err := rt.jobRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}

	artifacts, err := artifactStore(ctx, cfg)
	if err != nil {
		return err
	}
	rt.Artifacts = artifacts

	settings, err := rt.providerSettings(ctx, cfg)
	if err != nil {
		return err
	}
	rt.Generator = genai.NewService(genai.NewProvider(settings, logger), logger)

	policy, err := fit.LoadPolicy(cfg.FitPolicyPath)
	if err != nil {
		return fmt.Errorf("load fit policy: %w", err)
	}
	engine := fit.NewEngine(policy,
		fit.WithCompressor(rt.Generator, genai.IsTransient),
		fit.WithLogger(logger),
	)

	if len(cfg.KafkaBrokers) > 0 {
		rt.Publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	} else {
		rt.Publisher = events.NopPublisher{}
	}
	rt.closers = append(rt.closers, rt.Publisher.Close)
	eventObserver := events.NewObserver(rt.Publisher, logger)
	rt.closers = append(rt.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return eventObserver.Close(ctx)
	})

	rt.Jobs = jobs.NewMachine(jobRepo, logger,
		jobs.WithObservers(rt.Metrics, eventObserver),
	)
	rt.Orchestrator = pipeline.NewOrchestrator(
		rt.Jobs,
		rt.Generator,
		engine,
		render.NewBundleRenderer(artifacts, logger),
		logger,
		pipeline.WithArtifacts(artifacts),
		pipeline.WithRetry(cfg.Retry()),
		pipeline.WithStageObservers(rt.Metrics),
	)
	return nil
}

func (rt *Runtime) jobRepository(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.JobRepository, error) {
	switch cfg.JobStore {
	case infra.JobStorePostgres:
		if err := infra.Migrate(cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, closePool(pool))
		runner := infra.NewSQLRunner(pool, logger)
		rt.Credentials = credentials.NewStore(runner)
		return repo.NewJobRepositoryPG(runner), nil
	case infra.JobStoreRedis:
		rdb, err := repo.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, closeRedis(rdb))
		return repo.NewJobRepositoryRedis(rdb), nil
	default:
		return repo.NewJobRepositoryMemory(), nil
	}
}

func artifactStore(ctx context.Context, cfg *infra.Config) (domain.ArtifactStore, error) {
	if cfg.ArtifactStore == infra.ArtifactStoreMinio {
		return storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return storage.NewFileStore(cfg.ArtifactDir)
}

// providerSettings fills in API keys, falling back to the ones stored in the
// database when the environment carries none.
func (rt *Runtime) providerSettings(ctx context.Context, cfg *infra.Config) (genai.Settings, error) {
	gemini, err := rt.Credentials.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		return genai.Settings{}, fmt.Errorf("resolve gemini key: %w", err)
	}
	openai, err := rt.Credentials.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	if err != nil {
		return genai.Settings{}, fmt.Errorf("resolve openai key: %w", err)
	}
	anthropic, err := rt.Credentials.Resolve(ctx, credentials.ProviderAnthropic, cfg.AnthropicAPIKey)
	if err != nil {
		return genai.Settings{}, fmt.Errorf("resolve anthropic key: %w", err)
	}
	return genai.Settings{
		Provider: cfg.GenerationProvider,
		Gemini: genai.GeminiOptions{
			APIKey:  gemini,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
		},
		OpenAI: genai.OpenAIOptions{
			APIKey:       openai,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
		},
		Anthropic: genai.AnthropicOptions{
			APIKey: anthropic,
			Model:  cfg.AnthropicModel,
		},
	}, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}

func closeRedis(rdb *redis.Client) func() error {
	return rdb.Close
}
