// Package queue is the job queue client: an ordered, durable FIFO backed by a
// Redis list. Pushing appends, popping blocks with a bounded timeout and
// removes the message irrevocably. That atomic pop is the only claim
// primitive: two consumers can never receive the same message. There is no
// visibility timeout and no redelivery.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Queue struct {
	rdb redis.UniversalClient
	key string
}

func New(rdb redis.UniversalClient, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

// Push appends one job descriptor to the tail of the queue.
func (q *Queue) Push(ctx context.Context, payload []byte) error {
	return q.rdb.RPush(ctx, q.key, payload).Err()
}

// Pop blocks until a message arrives or timeout elapses. A timeout returns
// (nil, nil) so callers can use it as a periodic liveness tick.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Len reports the current queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
