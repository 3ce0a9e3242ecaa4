// Package cache wraps go-redis for plain KV access and the Redis Streams
// transport used as the default data-stream collaborator.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wallet-sentinel/sentinel/pkg/config"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
)

// Redis wraps a go-redis client with the small surface the pipeline needs:
// plain KV, and Streams for the push/publish collaborator.
type Redis struct {
	client *redis.Client
	ctx    context.Context
	logger *logging.Logger
}

// Connect dials Redis and verifies connectivity with a PING.
func Connect(cfg *config.RedisConfig, logger *logging.Logger) (*Redis, error) {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	logger.Info("connected to redis", map[string]interface{}{"host": cfg.Host, "port": cfg.Port})

	return &Redis{client: client, ctx: ctx, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

// Set stores a string value with an expiration.
func (r *Redis) Set(key, value string, expiration time.Duration) error {
	return r.client.Set(r.ctx, key, value, expiration).Err()
}

// Get reads a string value.
func (r *Redis) Get(key string) (string, error) {
	return r.client.Get(r.ctx, key).Result()
}

// Exists reports whether key is present.
func (r *Redis) Exists(key string) (bool, error) {
	n, err := r.client.Exists(r.ctx, key).Result()
	return n > 0, err
}

// Delete removes a key.
func (r *Redis) Delete(key string) error {
	return r.client.Del(r.ctx, key).Err()
}

// XMessage is one entry read back from a Redis Stream.
type XMessage struct {
	ID     string
	Values map[string]interface{}
}

// XAdd appends a message to a stream, auto-generating its ID.
func (r *Redis) XAdd(stream string, values map[string]interface{}) error {
	return r.client.XAdd(r.ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: values,
	}).Err()
}

// XGroupCreate creates a consumer group for stream, creating the stream
// itself first if necessary. Already-exists is treated as success.
func (r *Redis) XGroupCreate(stream, group string) error {
	exists, err := r.Exists(stream)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.XAdd(stream, map[string]interface{}{"init": "true"}); err != nil {
			return err
		}
	}

	err = r.client.XGroupCreate(r.ctx, stream, group, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// XAck acknowledges a message within a consumer group.
func (r *Redis) XAck(stream, group, messageID string) error {
	return r.client.XAck(r.ctx, stream, group, messageID).Err()
}

// XReadGroup reads up to count new (never-delivered) messages for consumer,
// blocking up to timeout for new entries.
func (r *Redis) XReadGroup(stream, group, consumer string, count int, timeout time.Duration) ([]XMessage, error) {
	result, err := r.client.XReadGroup(r.ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    int64(count),
		Block:    timeout,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var messages []XMessage
	for _, s := range result {
		for _, m := range s.Messages {
			messages = append(messages, XMessage{ID: m.ID, Values: m.Values})
		}
	}
	return messages, nil
}
