package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deckgen/internal/domain"
)

// Observer is told about every committed job change. prev is empty for a
// newly created job. Observers run after the write and cannot veto it.
type Observer interface {
	JobChanged(ctx context.Context, prev domain.JobStatus, job domain.Job)
}

// Machine owns the job lifecycle. The orchestrator is the single writer for a
// given job; any number of readers may call Get and List concurrently and
// always see a whole committed record.
type Machine struct {
	repo      domain.JobRepository
	validate  *validator.Validate
	observers []Observer
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Machine)

func WithObservers(obs ...Observer) Option {
	return func(m *Machine) { m.observers = append(m.observers, obs...) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(m *Machine) { m.newID = fn }
}

func NewMachine(repo domain.JobRepository, logger zerolog.Logger, opts ...Option) *Machine {
	m := &Machine{
		repo:     repo,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create validates req and stores a new job in the received state.
func (m *Machine) Create(ctx context.Context, req domain.DeckRequest) (domain.Job, error) {
	req = normalizeRequest(req)
	if err := m.validateRequest(req); err != nil {
		return domain.Job{}, err
	}
	now := m.stamp(time.Time{})
	job := domain.Job{
		ID:          m.newID(),
		Status:      domain.JobStatusReceived,
		Progress:    domain.JobStatusReceived.Progress(),
		CurrentStep: "Request received",
		Request:     req,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.Create(ctx, job); err != nil {
		return domain.Job{}, fmt.Errorf("create job: %w", err)
	}
	m.logger.Info().Str("job_id", job.ID).Int("slides", req.SlideCount).Msg("jobs: created")
	m.notify(ctx, "", job)
	return job, nil
}

// Advance moves a job to the immediate successor of its current state.
func (m *Machine) Advance(ctx context.Context, id string, to domain.JobStatus, progress int, step string) (domain.Job, error) {
	return m.mutate(ctx, id, func(cur domain.Job) (domain.Job, error) {
		if cur.Status.Terminal() {
			return cur, fmt.Errorf("%w: job is already %s", domain.ErrInvalidTransition, cur.Status)
		}
		next, ok := cur.Status.Next()
		if !ok || next != to {
			return cur, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.Status, to)
		}
		if to == domain.JobStatusDone {
			return cur, fmt.Errorf("%w: done is reached through complete", domain.ErrInvalidTransition)
		}
		if progress < cur.Progress || progress > 100 {
			return cur, fmt.Errorf("%w: progress %d after %d", domain.ErrInvalidTransition, progress, cur.Progress)
		}
		cur.Status = to
		cur.Progress = progress
		cur.CurrentStep = step
		return cur, nil
	})
}

// Fail moves a non-terminal job to error. Failing an errored job is a no-op.
func (m *Machine) Fail(ctx context.Context, id, detail string) (domain.Job, error) {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "unknown error"
	}
	var noop bool
	job, err := m.mutate(ctx, id, func(cur domain.Job) (domain.Job, error) {
		switch cur.Status {
		case domain.JobStatusError:
			noop = true
			return cur, nil
		case domain.JobStatusDone:
			return cur, fmt.Errorf("%w: job is already done", domain.ErrInvalidTransition)
		}
		cur.CurrentStep = fmt.Sprintf("Failed during %s", cur.Status)
		cur.Status = domain.JobStatusError
		cur.ErrorDetail = detail
		cur.ArtifactRef = ""
		return cur, nil
	}, func() bool { return noop })
	if err == nil && !noop {
		m.logger.Warn().Str("job_id", id).Str("error_detail", detail).Msg("jobs: failed")
	}
	return job, err
}

// Complete moves a rendering job to done and records its artifact.
func (m *Machine) Complete(ctx context.Context, id, artifactRef string) (domain.Job, error) {
	artifactRef = strings.TrimSpace(artifactRef)
	if artifactRef == "" {
		return domain.Job{}, fmt.Errorf("%w: artifact reference is required", domain.ErrInvalidRequest)
	}
	job, err := m.mutate(ctx, id, func(cur domain.Job) (domain.Job, error) {
		if cur.Status != domain.JobStatusRendering {
			return cur, fmt.Errorf("%w: complete from %s", domain.ErrInvalidTransition, cur.Status)
		}
		cur.Status = domain.JobStatusDone
		cur.Progress = domain.JobStatusDone.Progress()
		cur.CurrentStep = "Deck ready"
		cur.ArtifactRef = artifactRef
		return cur, nil
	})
	if err == nil {
		m.logger.Info().Str("job_id", id).Str("artifact", artifactRef).Msg("jobs: completed")
	}
	return job, err
}

// Get returns a snapshot of one job.
func (m *Machine) Get(ctx context.Context, id string) (domain.Job, error) {
	job, err := m.repo.Get(ctx, id)
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns every job, newest first.
func (m *Machine) List(ctx context.Context) ([]domain.Job, error) {
	jobs, err := m.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// RecoverInterrupted fails every job a previous process left mid-pipeline.
// Such jobs are never resumed since no orchestration run owns them anymore.
func (m *Machine) RecoverInterrupted(ctx context.Context) (int, error) {
	jobs, err := m.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover jobs: %w", err)
	}
	recovered := 0
	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		if _, err := m.Fail(ctx, job.ID, fmt.Sprintf("interrupted by restart during %s", job.Status)); err != nil {
			return recovered, err
		}
		recovered++
	}
	if recovered > 0 {
		m.logger.Warn().Int("jobs", recovered).Msg("jobs: failed jobs interrupted by restart")
	}
	return recovered, nil
}

// mutate reads the current record, applies fn and swaps the whole record in.
// skip reports whether fn decided there is nothing to write.
func (m *Machine) mutate(ctx context.Context, id string, fn func(domain.Job) (domain.Job, error), skip ...func() bool) (domain.Job, error) {
	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	prev := cur.Status
	expected := cur.UpdatedAt
	next, err := fn(cur)
	if err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	for _, s := range skip {
		if s() {
			return next, nil
		}
	}
	next.UpdatedAt = m.stamp(expected)
	if err := m.repo.Replace(ctx, next, expected); err != nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	m.notify(ctx, prev, next)
	return next, nil
}

// stamp returns a store-precision timestamp strictly after prev.
func (m *Machine) stamp(prev time.Time) time.Time {
	now := m.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (m *Machine) notify(ctx context.Context, prev domain.JobStatus, job domain.Job) {
	for _, o := range m.observers {
		o.JobChanged(ctx, prev, job)
	}
}
