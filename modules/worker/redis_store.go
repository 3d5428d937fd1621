package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quel-style-server/modules/common/model"
)

const (
	// BRPOP 대기 시간 (종료 신호를 주기적으로 확인)
	dequeueTimeout = 5 * time.Second
	// WATCH 충돌 시 재시도 횟수
	casRetries = 5
)

// RedisStore - LPUSH/BRPOP 큐 + job:{id} JSON
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Enqueue(ctx context.Context, job *model.Job) error {
	if err := s.Save(ctx, job); err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, queueKey, job.ID).Err(); err != nil {
		return fmt.Errorf("redis LPUSH failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Dequeue(ctx context.Context) (string, error) {
	// result[0]은 "jobs:queue", result[1]이 실제 job_id
	result, err := s.rdb.BRPop(ctx, dequeueTimeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis BRPOP failed: %w", err)
	}
	if len(result) < 2 {
		return "", nil
	}
	return result[1], nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job %s: %w", jobID, err)
	}
	return &job, nil
}

func (s *RedisStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

// CompareAndSave - WATCH job:{id} 후 상태가 같을 때만 MULTI/EXEC로 SET
func (s *RedisStore) CompareAndSave(ctx context.Context, job *model.Job, expected model.Status) (bool, error) {
	key := jobKey(job.ID)
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job: %w", err)
	}

	var saved bool
	txf := func(tx *redis.Tx) error {
		saved = false

		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}

		var current model.Job
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("failed to parse job %s: %w", job.ID, err)
		}
		if current.Status != expected {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			saved = true
		}
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			logrus.Debugf("🔁 [RedisStore] Job %s changed during transaction, retrying", job.ID)
			continue
		}
		if err != nil && !errors.Is(err, ErrJobNotFound) {
			return false, fmt.Errorf("redis transaction failed: %w", err)
		}
		return saved, err
	}
	return false, fmt.Errorf("redis transaction for job %s kept conflicting", job.ID)
}

func (s *RedisStore) Cancel(ctx context.Context, jobID string) error {
	if err := s.rdb.Set(ctx, cancelKey(jobID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cancel flag: %w", err)
	}
	return nil
}

func (s *RedisStore) IsCancelled(ctx context.Context, jobID string) bool {
	n, err := s.rdb.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		logrus.Warnf("⚠️  [Worker] Failed to check cancel flag for %s: %v", jobID, err)
		return false
	}
	return n > 0
}

func (s *RedisStore) QueueLength(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, queueKey).Result()
}
