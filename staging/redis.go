package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const backendRedis = "redis"

// RedisStore stages payloads in Redis under a key prefix with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logrus.Entry
}

// NewRedisStore creates a RedisStore from a Redis URL, e.g.
// redis://localhost:6379/0.
func NewRedisStore(url, prefix string, ttl time.Duration, log *logrus.Entry) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), prefix, ttl, log), nil
}

// NewRedisStoreWithClient creates a RedisStore around an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration, log *logrus.Entry) *RedisStore {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log.WithField("component", "staging-redis"),
	}
}

func (s *RedisStore) Put(ctx context.Context, key string, payload []byte) (Handle, error) {
	fullKey := s.prefix + key
	if err := s.client.Set(ctx, fullKey, payload, s.ttl).Err(); err != nil {
		return Handle{}, fmt.Errorf("staging payload %s: %w", key, err)
	}

	s.log.WithFields(logrus.Fields{
		"key":  fullKey,
		"size": humanize.Bytes(uint64(len(payload))),
	}).Debug("Payload staged")

	return Handle{
		Backend: backendRedis,
		Key:     fullKey,
		Size:    int64(len(payload)),
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, handle Handle) ([]byte, error) {
	if handle.Backend != backendRedis {
		return nil, fmt.Errorf("handle backend %q is not %s", handle.Backend, backendRedis)
	}
	payload, err := s.client.Get(ctx, handle.Key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("staged payload %s not found", handle.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching staged payload %s: %w", handle.Key, err)
	}
	return payload, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
