package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrDispatcherClosed is returned by Launch once Shutdown has begun.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Runner runs one job to completion.
type Runner interface {
	Run(ctx context.Context, id string) error
}

// Dispatcher starts one background run per job. Runs use the dispatcher's own
// context, never the context of the request that created the job.
type Dispatcher struct {
	runner Runner
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher detaches from parent's cancellation but keeps its values.
func NewDispatcher(parent context.Context, runner Runner, logger zerolog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Dispatcher{
		runner: runner,
		logger: logger.With().Str("component", "dispatcher").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Launch starts the run for id and returns immediately.
func (d *Dispatcher) Launch(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Interface("panic", r).Str("job_id", id).Msg("dispatcher: run panicked")
			}
		}()
		if err := d.runner.Run(d.ctx, id); err != nil {
			d.logger.Warn().Err(err).Str("job_id", id).Msg("dispatcher: run ended with error")
		}
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires
// first, the runs are cancelled and Shutdown waits for them to record their
// failure before returning ctx's error.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn().Msg("dispatcher: cancelling running jobs")
		d.cancel()
		<-done
		return ctx.Err()
	}
}
