package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrQueueFull the dispatcher has no room for another job.
var ErrQueueFull = errors.New("worker queue is full")

type Queue struct {
	client    *redis.Client
	queueName string
	maxLength int64
}

type JobMessage struct {
	JobID   string `json:"job_id"`
	RepoURL string `json:"repo_url"`
	Branch  string `json:"branch,omitempty"`
}

// NewQueue binds a Redis list. maxLength <= 0 means unbounded.
func NewQueue(client *redis.Client, queueName string, maxLength int64) *Queue {
	return &Queue{
		client:    client,
		queueName: queueName,
		maxLength: maxLength,
	}
}

// Push appends a job to the list.
func (q *Queue) Push(ctx context.Context, msg *JobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Dispatch pushes msg unless the list already holds maxLength jobs.
func (q *Queue) Dispatch(ctx context.Context, msg *JobMessage) error {
	if q.maxLength > 0 {
		n, err := q.Length(ctx)
		if err != nil {
			return fmt.Errorf("failed to read queue length: %w", err)
		}
		if n >= q.maxLength {
			return ErrQueueFull
		}
	}
	return q.Push(ctx, msg)
}

// Pop blocks up to timeout for the oldest job; nil when none arrived.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*JobMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg JobMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
