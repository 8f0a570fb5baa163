package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"deckgen/internal/domain"
)

func sampleJob(id string, at time.Time) domain.Job {
	return domain.Job{
		ID:          id,
		Status:      domain.JobStatusReceived,
		CurrentStep: "Request received",
		Request: domain.DeckRequest{
			Topic:      "Quarterly revenue review",
			SlideCount: 6,
			Audience:   domain.AudienceExecutive,
			Template:   domain.TemplateCorporate,
			Locale:     "en",
		},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestMemoryReplaceIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepositoryMemory()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	job := sampleJob("a", t0)
	if err := r.Create(ctx, job); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := r.Create(ctx, job); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate Create = %v, want ErrConflict", err)
	}

	next := job
	next.Status = domain.JobStatusOutline
	next.Progress = 10
	next.UpdatedAt = t0.Add(time.Second)
	if err := r.Replace(ctx, next, t0); err != nil {
		t.Fatalf("Replace error: %v", err)
	}

	stale := job
	stale.Status = domain.JobStatusError
	stale.UpdatedAt = t0.Add(2 * time.Second)
	if err := r.Replace(ctx, stale, t0); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale Replace = %v, want ErrConflict", err)
	}
	if err := r.Replace(ctx, sampleJob("missing", t0), t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Replace unknown = %v, want ErrNotFound", err)
	}

	got, err := r.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != domain.JobStatusOutline {
		t.Fatalf("status = %s, want outline", got.Status)
	}
}

func TestMemorySnapshotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepositoryMemory()
	t0 := time.Now().UTC()
	_ = r.Create(ctx, sampleJob("a", t0))

	snap, _ := r.Get(ctx, "a")
	snap.Status = domain.JobStatusDone
	again, _ := r.Get(ctx, "a")
	if again.Status != domain.JobStatusReceived {
		t.Fatal("mutating a snapshot leaked into the store")
	}
}

type execCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	execs     []execCall
	affected  int64
	execErr   error
	row       pgx.Row
	rowsQuery string
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	if strings.Contains(query, "update deck_jobs") {
		if s.affected == 1 {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.rowsQuery = query
	return nil, errors.New("not implemented")
}

type boolRow struct {
	value bool
	err   error
}

func (r boolRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	ptr, ok := dest[0].(*bool)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.value
	return nil
}

const pgJobID = "6f1c2a9e-3b4d-4e8f-9a10-2b3c4d5e6f70"

func TestPGGetReportsUnknownIDsAsNotFound(t *testing.T) {
	tests := []struct {
		name string
		id   string
		row  pgx.Row
	}{
		{name: "no rows", id: pgJobID, row: boolRow{err: pgx.ErrNoRows}},
		{name: "not a uuid", id: "not-a-uuid"},
		{name: "uuid cast rejected", id: pgJobID, row: boolRow{err: &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewJobRepositoryPG(&stubExecutor{row: tc.row})
			if _, err := r.Get(context.Background(), tc.id); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("Get(%q) = %v, want ErrNotFound", tc.id, err)
			}
		})
	}
}

func TestPGGetKeepsOtherErrors(t *testing.T) {
	boom := &pgconn.PgError{Code: "57P01", Message: "terminating connection"}
	r := NewJobRepositoryPG(&stubExecutor{row: boolRow{err: boom}})
	_, err := r.Get(context.Background(), pgJobID)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get = %v, want the driver error", err)
	}
}

func TestPGReplaceRejectsMalformedID(t *testing.T) {
	exec := &stubExecutor{}
	r := NewJobRepositoryPG(exec)
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := r.Replace(context.Background(), sampleJob("not-a-uuid", t0), t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Replace = %v, want ErrNotFound", err)
	}
	if len(exec.execs) != 0 {
		t.Fatalf("malformed id reached the database: %+v", exec.execs)
	}
}

func TestPGCreateEncodesRequest(t *testing.T) {
	exec := &stubExecutor{}
	r := NewJobRepositoryPG(exec)
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := r.Create(context.Background(), sampleJob("a", t0)); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(exec.execs) != 1 || len(exec.execs[0].args) != 9 {
		t.Fatalf("unexpected exec calls: %+v", exec.execs)
	}
	raw, ok := exec.execs[0].args[4].([]byte)
	if !ok || !strings.Contains(string(raw), `"slide_count":6`) {
		t.Fatalf("request arg = %T %s", exec.execs[0].args[4], raw)
	}
}

func TestPGReplace(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		affected int64
		exists   bool
		want     error
	}{
		{name: "swapped", affected: 1},
		{name: "stale", affected: 0, exists: true, want: domain.ErrConflict},
		{name: "missing", affected: 0, exists: false, want: domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{affected: tc.affected, row: boolRow{value: tc.exists}}
			r := NewJobRepositoryPG(exec)
			err := r.Replace(context.Background(), sampleJob(pgJobID, t0.Add(time.Second)), t0)
			if tc.want == nil && err != nil {
				t.Fatalf("Replace error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("Replace = %v, want %v", err, tc.want)
			}
			if got := exec.execs[0].args[7]; got != t0 {
				t.Fatalf("expected updated_at arg = %v, want %v", got, t0)
			}
		})
	}
}
