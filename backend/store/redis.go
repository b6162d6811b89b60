package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	alertsKey = "mediguard:alerts"

	// maxKeptAlerts caps the Redis list so a long-running simulation cannot
	// grow it without bound.
	maxKeptAlerts = 1000
)

// RedisStore implements AlertStore as a capped Redis list: newest alert at
// the head, trimmed to maxKeptAlerts.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and verifies the connection.
func NewRedisStore(addr string, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Append(ctx context.Context, alert *Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, alertsKey, data)
	pipe.LTrim(ctx, alertsKey, 0, maxKeptAlerts-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListRecent(ctx context.Context, limit int) ([]*Alert, error) {
	if limit <= 0 || limit > maxKeptAlerts {
		limit = maxKeptAlerts
	}

	items, err := s.client.LRange(ctx, alertsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	alerts := make([]*Alert, 0, len(items))
	for _, item := range items {
		var a Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		alerts = append(alerts, &a)
	}
	return alerts, nil
}
