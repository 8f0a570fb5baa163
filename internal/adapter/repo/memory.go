package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deckgen/internal/domain"
)

// JobRepositoryMemory keeps job records in process memory. Records are value
// snapshots so a reader can never observe half of a replace.
type JobRepositoryMemory struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewJobRepositoryMemory creates an empty in-memory job store.
func NewJobRepositoryMemory() *JobRepositoryMemory {
	return &JobRepositoryMemory{jobs: make(map[string]domain.Job)}
}

func (r *JobRepositoryMemory) Create(ctx context.Context, job domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("job %s exists: %w", job.ID, domain.ErrConflict)
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *JobRepositoryMemory) Get(ctx context.Context, id string) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, err
	}
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return job, nil
}

func (r *JobRepositoryMemory) Replace(ctx context.Context, job domain.Job, expected time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if !cur.UpdatedAt.Equal(expected) {
		return domain.ErrConflict
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *JobRepositoryMemory) List(ctx context.Context) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out, nil
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)
