package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deckgen/internal/domain"
)

const (
	redisJobPrefix = "deckgen:job:"
	redisJobIndex  = "deckgen:jobs"
)

// JobRepositoryRedis stores each job as one JSON value and keeps a sorted
// set of ids scored by creation time. Replace runs under WATCH so a
// concurrent write to the same key aborts the transaction.
type JobRepositoryRedis struct {
	rdb *redis.Client
}

func NewJobRepositoryRedis(rdb *redis.Client) *JobRepositoryRedis {
	return &JobRepositoryRedis{rdb: rdb}
}

// NewRedisClient dials addr and verifies the connection with a PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// createJobScript writes the job value and its index entry in one atomic
// step, so a failed create never leaves a job missing from List.
var createJobScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
	return 1
end
return 0
`)

func (r *JobRepositoryRedis) Create(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	created, err := createJobScript.Run(ctx, r.rdb,
		[]string{redisJobPrefix + job.ID, redisJobIndex},
		data, job.CreatedAt.UnixMicro(), job.ID,
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return fmt.Errorf("job %s exists: %w", job.ID, domain.ErrConflict)
	}
	return nil
}

func (r *JobRepositoryRedis) Get(ctx context.Context, id string) (domain.Job, error) {
	raw, err := r.rdb.Get(ctx, redisJobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, err
	}
	return decodeJob(raw)
}

func (r *JobRepositoryRedis) Replace(ctx context.Context, job domain.Job, expected time.Time) error {
	key := redisJobPrefix + job.ID
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return err
		}
		cur, err := decodeJob(raw)
		if err != nil {
			return err
		}
		if !cur.UpdatedAt.Equal(expected) {
			return domain.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConflict
	}
	return err
}

func (r *JobRepositoryRedis) List(ctx context.Context) ([]domain.Job, error) {
	ids, err := r.rdb.ZRevRange(ctx, redisJobIndex, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisJobPrefix + id
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Job, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		job, err := decodeJob([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func decodeJob(raw []byte) (domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.Job{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

var _ domain.JobRepository = (*JobRepositoryRedis)(nil)
