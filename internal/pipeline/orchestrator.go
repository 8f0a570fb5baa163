// Package pipeline drives a deck job through the generation stages.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"deckgen/internal/domain"
	"deckgen/internal/fit"
	"deckgen/internal/providers/genai"
	"deckgen/internal/resilience"
)

// Generator is the content generation service.
type Generator interface {
	Generate(ctx context.Context, stage domain.JobStatus, p genai.Prompt) (string, error)
}

// Renderer turns a finished deck into a stored artifact.
type Renderer interface {
	Render(ctx context.Context, deck domain.Deck, template domain.Template) (string, error)
}

// Tracker is the part of the job state machine the orchestrator writes to.
type Tracker interface {
	Get(ctx context.Context, id string) (domain.Job, error)
	Advance(ctx context.Context, id string, to domain.JobStatus, progress int, step string) (domain.Job, error)
	Fail(ctx context.Context, id, detail string) (domain.Job, error)
	Complete(ctx context.Context, id, artifactRef string) (domain.Job, error)
}

// StageObserver is told how long each stage took and whether it failed.
type StageObserver interface {
	StageFinished(stage domain.JobStatus, took time.Duration, err error)
}

// StageError ties a failure to the stage that produced it. Its text becomes
// the job's error detail.
type StageError struct {
	Stage domain.JobStatus
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Orchestrator runs one job at a time per call to Run. It holds no per-job
// state, so one instance serves every job.
type Orchestrator struct {
	jobs      Tracker
	gen       Generator
	fit       *fit.Engine
	renderer  Renderer
	artifacts domain.ArtifactStore
	retry     resilience.RetryConfig
	observers []StageObserver
	logger    zerolog.Logger
}

type Option func(*Orchestrator)

// WithArtifacts stores intermediate stage output next to the bundle.
func WithArtifacts(store domain.ArtifactStore) Option {
	return func(o *Orchestrator) { o.artifacts = store }
}

func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *Orchestrator) { o.retry = cfg }
}

func WithStageObservers(obs ...StageObserver) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

func NewOrchestrator(jobs Tracker, gen Generator, engine *fit.Engine, renderer Renderer, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:     jobs,
		gen:      gen,
		fit:      engine,
		renderer: renderer,
		retry:    resilience.DefaultRetryConfig(),
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives job id from received to done. Any failure moves the job to error
// and is returned for logging; callers never need to act on it.
func (o *Orchestrator) Run(ctx context.Context, id string) (err error) {
	job, err := o.jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load job %s: %w", id, err)
	}
	if job.Status != domain.JobStatusReceived {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, domain.ErrInvalidTransition)
	}

	logger := o.logger.With().Str("job_id", id).Logger()
	st := &runState{job: job}
	current := domain.JobStatusOutline
	defer func() {
		if r := recover(); r != nil {
			err = o.fail(ctx, id, &StageError{Stage: current, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	start := time.Now()
	for _, s := range o.stages() {
		current = s.status
		began := time.Now()
		stageErr := s.run(ctx, st)
		if stageErr == nil && s.repair {
			st.deck = o.fit.Repair(ctx, st.deck)
			if s.status == domain.JobStatusReview {
				st.deck = o.fit.Finalize(ctx, st.deck)
			}
		}
		o.observe(s.status, time.Since(began), stageErr)
		if stageErr != nil {
			return o.fail(ctx, id, &StageError{Stage: s.status, Err: stageErr})
		}
		if _, err := o.jobs.Advance(ctx, id, s.status, s.status.Progress(), s.describe(st)); err != nil {
			return o.fail(ctx, id, &StageError{Stage: s.status, Err: err})
		}
		logger.Debug().Str("stage", string(s.status)).Dur("took", time.Since(began)).Msg("pipeline: stage finished")
	}

	current = domain.JobStatusRendering
	if _, err := o.jobs.Advance(ctx, id, domain.JobStatusRendering, domain.JobStatusRendering.Progress(), "Rendering deck"); err != nil {
		return o.fail(ctx, id, &StageError{Stage: current, Err: err})
	}
	o.persist(ctx, id, "deck.json", st.deck)
	began := time.Now()
	ref, renderErr := o.renderer.Render(ctx, st.deck, job.Request.Template)
	o.observe(domain.JobStatusRendering, time.Since(began), renderErr)
	if renderErr != nil {
		return o.fail(ctx, id, &StageError{Stage: current, Err: renderErr})
	}
	if _, err := o.jobs.Complete(ctx, id, ref); err != nil {
		return o.fail(ctx, id, &StageError{Stage: current, Err: err})
	}
	logger.Info().
		Str("artifact", ref).
		Int("slides", len(st.deck.Slides)).
		Dur("took", time.Since(start)).
		Msg("pipeline: job completed")
	return nil
}

// fail records cause on the job. The write is detached from ctx so a
// cancelled run still leaves the job in error.
func (o *Orchestrator) fail(ctx context.Context, id string, cause *StageError) error {
	o.logger.Error().Err(cause.Err).Str("job_id", id).Str("stage", string(cause.Stage)).Msg("pipeline: job failed")
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := o.jobs.Fail(failCtx, id, cause.Error()); err != nil {
		o.logger.Error().Err(err).Str("job_id", id).Msg("pipeline: record failure")
	}
	return cause
}

func (o *Orchestrator) observe(stage domain.JobStatus, took time.Duration, err error) {
	for _, obs := range o.observers {
		obs.StageFinished(stage, took, err)
	}
}

// persist stores a diagnostic copy of v. Failures are logged and ignored.
func (o *Orchestrator) persist(ctx context.Context, id, name string, v any) {
	if o.artifacts == nil {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		_, err = o.artifacts.Write(ctx, path.Join("decks", id, name), data)
	}
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", id).Str("artifact", name).Msg("pipeline: persist stage output")
	}
}

// generateAs calls the generation service with retries on transient errors
// and decodes the answer. A response that does not decode is not retried.
func generateAs[T any](ctx context.Context, o *Orchestrator, stage domain.JobStatus, p genai.Prompt) (T, error) {
	var raw string
	err := resilience.Retry(ctx, o.logger, "generate "+string(stage), o.retry, genai.IsTransient, func(ctx context.Context) error {
		out, err := o.gen.Generate(ctx, stage, p)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return genai.Decode[T](raw)
}
