package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"deckgen/internal/domain"
	"deckgen/internal/infra"
	"deckgen/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepositoryPG creates a job repository backed by PostgreSQL.
func NewJobRepositoryPG(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job domain.Job) error {
	req, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		string(job.Status),
		job.Progress,
		job.CurrentStep,
		req,
		job.ArtifactRef,
		job.ErrorDetail,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// Get fetches a job by its identifier. Ids that are not UUIDs cannot exist
// in the table and report ErrNotFound without a round trip.
func (r *JobRepositoryPG) Get(ctx context.Context, id string) (domain.Job, error) {
	if !isJobID(id) {
		return domain.Job{}, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJob, id))
	if err != nil {
		if infra.IsNoRows(err) || isInvalidText(err) {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, err
	}
	return job, nil
}

// Replace overwrites the mutable columns in a single statement guarded by
// the expected updated_at.
func (r *JobRepositoryPG) Replace(ctx context.Context, job domain.Job, expected time.Time) error {
	if !isJobID(job.ID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QReplaceJob,
		job.ID,
		string(job.Status),
		job.Progress,
		job.CurrentStep,
		job.ArtifactRef,
		job.ErrorDetail,
		job.UpdatedAt,
		expected,
	)
	if err != nil {
		if isInvalidText(err) {
			return domain.ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.sql.QueryRow(ctx, sqlinline.QJobExists, job.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// List returns all jobs, newest first.
func (r *JobRepositoryPG) List(ctx context.Context) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func isJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// isInvalidText matches SQLSTATE 22P02, raised when an id fails the uuid cast.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var (
		job    domain.Job
		status string
		req    []byte
	)
	if err := row.Scan(
		&job.ID,
		&status,
		&job.Progress,
		&job.CurrentStep,
		&req,
		&job.ArtifactRef,
		&job.ErrorDetail,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return domain.Job{}, err
	}
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal(req, &job.Request); err != nil {
		return domain.Job{}, fmt.Errorf("decode request for job %s: %w", job.ID, err)
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
