package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wallet-sentinel/sentinel/internal/storage/cache"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
)

// RedisStream is the default data-stream collaborator: a Publisher backed
// by Redis Streams (XAdd), grounded on the teacher's pipeline consumer-group
// pattern, and a best-effort Subscriber built over a polling XReadGroup
// loop against a per-address-filtered consumer group.
type RedisStream struct {
	redis  *cache.Redis
	stream string
	group  string
	logger *logging.Logger
}

// NewRedisStream wires a Redis Streams collaborator against the given
// stream name, creating its consumer group if absent.
func NewRedisStream(redis *cache.Redis, streamName, group string, logger *logging.Logger) (*RedisStream, error) {
	if err := redis.XGroupCreate(streamName, group); err != nil {
		return nil, err
	}
	return &RedisStream{redis: redis, stream: streamName, group: group, logger: logger}, nil
}

// Publish records a score computation off-band, per §4.8's periodic batch
// step and §6's optional publish sink.
func (r *RedisStream) Publish(ctx context.Context, record map[string]interface{}) error {
	return r.redis.XAdd(r.stream, record)
}

// Subscribe starts a background poll loop filtering stream entries whose
// decoded address matches, per §4.5 mode 1. The collaborator's payload
// shape is unspecified upstream, so entries are run through DecodeRecord.
func (r *RedisStream) Subscribe(ctx context.Context, address string, onData func(Record), onError func(error)) (Subscription, error) {
	consumerID := uuid.NewString()
	group := r.group + ":" + address
	if err := r.redis.XGroupCreate(r.stream, group); err != nil {
		return Subscription{}, err
	}
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			default:
			}

			messages, err := r.redis.XReadGroup(r.stream, group, consumerID, 16, 2*time.Second)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			for _, m := range messages {
				decoded := DecodeRecord(Record(convertValues(m.Values)))
				if decoded.Address == address {
					onData(m.Values)
				}
				_ = r.redis.XAck(r.stream, group, m.ID)
			}
		}
	}()

	return Subscription{ID: consumerID, Unsubscribe: cancel}, nil
}

func convertValues(values map[string]interface{}) map[string]interface{} {
	return values
}
