package domain

import (
	"context"
	"time"
)

// JobRepository persists job records. Replace swaps the whole record in one
// step and rejects the write with ErrConflict when the stored UpdatedAt no
// longer matches expected.
type JobRepository interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	Replace(ctx context.Context, job Job, expected time.Time) error
	List(ctx context.Context) ([]Job, error)
}

// ArtifactStore persists produced deck bundles and intermediate stage output.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
}
