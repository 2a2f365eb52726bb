package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestNewQueue(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", 10)

	assert.NotNil(t, q)
	assert.Equal(t, "test_queue", q.queueName)
	assert.Equal(t, int64(10), q.maxLength)
}

func TestQueue_Push(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := q.Push(ctx, &JobMessage{JobID: fmt.Sprintf("job-%d", i)})
		require.NoError(t, err)
	}

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)
}

func TestQueue_Pop(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		q := NewQueue(client, "test_pop_queue", 0)

		msg := &JobMessage{
			JobID:   "0b7c5a5e-0000-4000-8000-000000000042",
			RepoURL: "https://github.com/test/repo",
			Branch:  "develop",
		}
		require.NoError(t, q.Push(ctx, msg))

		result, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, msg, result)
	})

	t.Run("FIFO order", func(t *testing.T) {
		q := NewQueue(client, "test_fifo_queue", 0)

		for i := 1; i <= 3; i++ {
			require.NoError(t, q.Push(ctx, &JobMessage{JobID: fmt.Sprintf("job-%d", i)}))
		}

		for i := 1; i <= 3; i++ {
			result, err := q.Pop(ctx, time.Second)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, fmt.Sprintf("job-%d", i), result.JobID)
		}
	})

	t.Run("empty queue times out", func(t *testing.T) {
		q := NewQueue(client, "test_empty_queue", 0)

		result, err := q.Pop(ctx, 10*time.Millisecond)

		// miniredis doesn't support BRPop timeout properly, so check for nil or error
		if err == nil {
			assert.Nil(t, result)
		}
	})
}

func TestQueue_Dispatch(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	q := NewQueue(client, "test_dispatch", 2)

	require.NoError(t, q.Dispatch(ctx, &JobMessage{JobID: "a"}))
	require.NoError(t, q.Dispatch(ctx, &JobMessage{JobID: "b"}))
	assert.ErrorIs(t, q.Dispatch(ctx, &JobMessage{JobID: "c"}), ErrQueueFull)

	_, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.NoError(t, q.Dispatch(ctx, &JobMessage{JobID: "c"}))
}

func TestQueue_Dispatch_RedisDown(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	cleanup()

	q := NewQueue(client, "test_down", 0)
	err := q.Dispatch(context.Background(), &JobMessage{JobID: "a"})
	assert.Error(t, err)
}
