package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores the record in a Redis hash keyed by the anonymous
// session. It gives multi-device continuity for hosts that already run
// Redis; clearing it requires clearing server state rather than the
// browser.
type RedisBackend struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisBackend returns a Redis-backed counter backend. The key should be
// scoped to the anonymous visitor, e.g. "usage:" + sessionID.
func NewRedisBackend(client *redis.Client, key string, timeout time.Duration) *RedisBackend {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisBackend{client: client, key: key, timeout: timeout}
}

func (b *RedisBackend) Read() (Record, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	values, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read counter hash: %w", err)
	}
	if len(values) == 0 {
		return Record{}, false, nil
	}
	count, err := strconv.Atoi(values["count"])
	if err != nil {
		return Record{}, false, fmt.Errorf("bad count in counter hash: %w", err)
	}
	return Record{
		MonthKey:  values["month_key"],
		Count:     count,
		SessionID: values["session_id"],
	}, true, nil
}

func (b *RedisBackend) Write(record Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err := b.client.HSet(ctx, b.key,
		"month_key", record.MonthKey,
		"count", record.Count,
		"session_id", record.SessionID,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write counter hash: %w", err)
	}
	// Let abandoned sessions age out on their own.
	return b.client.Expire(ctx, b.key, 90*24*time.Hour).Err()
}
