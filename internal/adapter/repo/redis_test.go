package repo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"deckgen/internal/domain"
)

// scriptedRedis answers every command with result and records its args,
// without ever dialing a server.
type scriptedRedis struct {
	result any
	calls  [][]any
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (h *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.calls = append(h.calls, cmd.Args())
		if c, ok := cmd.(*redis.Cmd); ok {
			c.SetVal(h.result)
		}
		return nil
	}
}

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func scriptedClient(result any) (*redis.Client, *scriptedRedis) {
	h := &scriptedRedis{result: result}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	rdb.AddHook(h)
	return rdb, h
}

func TestRedisCreateWritesValueAndIndexInOneCommand(t *testing.T) {
	tests := []struct {
		name    string
		result  int64
		wantErr error
	}{
		{"created", 1, nil},
		{"id taken", 0, domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb, h := scriptedClient(tt.result)
			defer rdb.Close()
			job := sampleJob("job-1", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

			err := NewJobRepositoryRedis(rdb).Create(context.Background(), job)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create error = %v, want %v", err, tt.wantErr)
			}
			if len(h.calls) != 1 {
				t.Fatalf("sent %d commands, want 1: %v", len(h.calls), h.calls)
			}
			args := h.calls[0]
			if len(args) != 8 || args[0] != "evalsha" {
				t.Fatalf("args = %v", args)
			}
			if args[3] != redisJobPrefix+"job-1" || args[4] != redisJobIndex || args[7] != "job-1" {
				t.Fatalf("keys/args = %v", args[3:])
			}
			if fmt.Sprint(args[6]) != fmt.Sprint(job.CreatedAt.UnixMicro()) {
				t.Fatalf("score = %v", args[6])
			}
		})
	}
}

// Runs against a live server when DECKGEN_TEST_REDIS_ADDR is set.
func TestRedisRepositoryAgainstServer(t *testing.T) {
	addr := os.Getenv("DECKGEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DECKGEN_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()
	r := NewJobRepositoryRedis(rdb)

	t0 := time.Now().UTC().Truncate(time.Microsecond)
	job := sampleJob(uuid.NewString(), t0)
	t.Cleanup(func() {
		rdb.Del(ctx, redisJobPrefix+job.ID)
		rdb.ZRem(ctx, redisJobIndex, job.ID)
	})

	if err := r.Create(ctx, job); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := r.Create(ctx, job); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Create error = %v, want conflict", err)
	}
	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	found := 0
	for _, j := range list {
		if j.ID == job.ID {
			found++
		}
	}
	if found != 1 {
		t.Fatalf("job listed %d times, want 1", found)
	}

	next := job
	next.Status = domain.JobStatusOutline
	next.UpdatedAt = t0.Add(time.Second)
	if err := r.Replace(ctx, next, t0); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	if err := r.Replace(ctx, next, t0); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale Replace error = %v, want conflict", err)
	}
}
