package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stockchat/backend/internal/model"
)

type redisRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRepository stores each thread as a list of JSON messages. A
// positive ttl expires idle threads.
func NewRedisRepository(rdb *redis.Client, ttl time.Duration) ThreadRepository {
	return &redisRepository{rdb: rdb, ttl: ttl}
}

func (r *redisRepository) messagesKey(threadID string) string {
	return fmt.Sprintf("thread:%s:messages", threadID)
}

func (r *redisRepository) GetThread(ctx context.Context, threadID string) ([]model.ThreadMessage, error) {
	raw, err := r.rdb.LRange(ctx, r.messagesKey(threadID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("could not read thread: %w", err)
	}
	messages := make([]model.ThreadMessage, 0, len(raw))
	for _, item := range raw {
		var msg model.ThreadMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("could not decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *redisRepository) AppendMessages(ctx context.Context, threadID string, msgs ...model.ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		encoded, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("could not encode message: %w", err)
		}
		values = append(values, encoded)
	}

	key := r.messagesKey(threadID)
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute append pipeline: %w", err)
	}
	return nil
}

func (r *redisRepository) DeleteThread(ctx context.Context, threadID string) error {
	n, err := r.rdb.Del(ctx, r.messagesKey(threadID)).Result()
	if err != nil {
		return fmt.Errorf("could not delete thread: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
