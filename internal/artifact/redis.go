package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"segweaver/internal/core"
	"segweaver/internal/table"
)

// DefaultRedisPrefix namespaces artifact keys in a shared Redis.
const DefaultRedisPrefix = "segweaver:artifact:"

// RedisStore implements Store on a Redis hash per entry.
//
// Each entry is written with a single HSET, so a concurrent reader sees either
// the previous entry or the new one, never a mix.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. ttl <= 0 keeps entries forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// DialRedisStore parses url, connects and pings the server.
func DialRedisStore(ctx context.Context, url, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client, prefix, ttl), nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(k core.Fingerprint) string { return s.prefix + string(k) }

func (s *RedisStore) Has(ctx context.Context, key core.Fingerprint) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("checking cache entry: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Get(ctx context.Context, key core.Fingerprint) (*Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	payload, ok := fields["frame"]
	if !ok {
		return nil, corrupt(key, "entry has no frame field")
	}
	if got := core.Digest([]byte(payload)); got != fields["digest"] {
		return nil, corrupt(key, "payload digest %s does not match %q", got[:12], fields["digest"])
	}
	frame, err := table.Decode([]byte(payload))
	if err != nil {
		return nil, corrupt(key, "%v", err)
	}
	return &Entry{Key: key, Node: fields["node"], Frame: frame}, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	payload, err := table.Encode(entry.Frame)
	if err != nil {
		return fmt.Errorf("encoding payload for %s: %w", entry.Node, err)
	}
	k := s.key(entry.Key)

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, map[string]any{
			"node":   entry.Node,
			"digest": core.Digest(payload),
			"frame":  payload,
		})
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}
