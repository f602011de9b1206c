package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
)

// RequestsKey is the Redis list holding pending scene requests
const RequestsKey = "scene-requests"

// SceneQueue is the FIFO of scene generation requests shared by API and
// workers
type SceneQueue struct {
	client *Client
}

func NewSceneQueue(client *Client) *SceneQueue {
	return &SceneQueue{client: client}
}

// Enqueue adds a request to the end of the queue
func (q *SceneQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, RequestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	q.client.logger.Debug("Enqueued scene request", "request_id", req.RequestID, "story_id", req.StoryID)
	return nil
}

// Dequeue removes and returns the next request. Returns nil if the queue is
// empty.
func (q *SceneQueue) Dequeue(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for a request. Returns nil when the
// timeout passes or ctx is done.
func (q *SceneQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, RequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

// Depth returns the number of pending requests
func (q *SceneQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, RequestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

func parse(data string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
