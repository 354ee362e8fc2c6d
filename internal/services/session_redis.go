package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"meetsync/internal/models"
)

const (
	redisSessionPrefix    = "meetsync:session:"
	redisExecutionsPrefix = "meetsync:executions:"
	redisActiveUsersKey   = "meetsync:active-users"
)

// RedisSessionBackend stores each session as a JSON value and each execution log as a capped list
type RedisSessionBackend struct {
	client *redis.Client
}

// NewRedisSessionBackend creates a backend on an existing connection
func NewRedisSessionBackend(redisService *RedisService) *RedisSessionBackend {
	return &RedisSessionBackend{client: redisService.Client()}
}

func (b *RedisSessionBackend) LoadSession(ctx context.Context, userID string) (*StoredSession, error) {
	raw, err := b.client.Get(ctx, redisSessionPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored StoredSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &stored, nil
}

func (b *RedisSessionBackend) SaveSession(ctx context.Context, session *StoredSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionPrefix+session.UserID, data, 0)
		if session.Active {
			pipe.SAdd(ctx, redisActiveUsersKey, session.UserID)
		} else {
			pipe.SRem(ctx, redisActiveUsersKey, session.UserID)
		}
		return nil
	})
	return err
}

func (b *RedisSessionBackend) DeleteSession(ctx context.Context, userID string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionPrefix+userID)
		pipe.SRem(ctx, redisActiveUsersKey, userID)
		return nil
	})
	return err
}

func (b *RedisSessionBackend) AppendExecution(ctx context.Context, userID string, record models.ExecutionRecord, limit int) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	key := redisExecutionsPrefix + userID
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(limit-1))
		return nil
	})
	return err
}

func (b *RedisSessionBackend) ListExecutions(ctx context.Context, userID string) ([]models.ExecutionRecord, error) {
	values, err := b.client.LRange(ctx, redisExecutionsPrefix+userID, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]models.ExecutionRecord, 0, len(values))
	for _, v := range values {
		var rec models.ExecutionRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (b *RedisSessionBackend) DeleteExecutions(ctx context.Context, userID string) error {
	return b.client.Del(ctx, redisExecutionsPrefix+userID).Err()
}

func (b *RedisSessionBackend) ActiveUsers(ctx context.Context) ([]string, error) {
	return b.client.SMembers(ctx, redisActiveUsersKey).Result()
}

func (b *RedisSessionBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
