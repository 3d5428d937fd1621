package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quel-style-server/modules/common/model"
)

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "job:abc", jobKey("abc"))
	assert.Equal(t, "job:abc:cancelled", cancelKey("abc"))
}

// TEST_REDIS_ADDR가 설정된 경우에만 실행
func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	store := NewRedisStore(rdb, time.Minute)
	job := model.NewJob(uuid.NewString(), []byte(`{"prompt":"A cat"}`))
	defer rdb.Del(ctx, jobKey(job.ID), cancelKey(job.ID))

	require.NoError(t, store.Enqueue(ctx, job))

	stored, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInQueue, stored.Status)
	assert.JSONEq(t, `{"prompt":"A cat"}`, string(stored.Input))

	ttl, err := rdb.TTL(ctx, jobKey(job.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	assert.False(t, store.IsCancelled(ctx, job.ID))
	require.NoError(t, store.Cancel(ctx, job.ID))
	assert.True(t, store.IsCancelled(ctx, job.ID))

	started := *stored
	started.Status = model.StatusInProgress
	ok, err := store.CompareAndSave(ctx, &started, model.StatusInQueue)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.CompareAndSave(ctx, stored, model.StatusInQueue)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)

	id, err := store.Dequeue(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
