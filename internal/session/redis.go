package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces session keys in a shared Redis.
const DefaultRedisKeyPrefix = "caltodo:session:"

// RedisStore keeps credentials in Redis as JSON, optionally encrypted, with
// a per-key TTL.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	encryption *TokenEncryption
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL sets the expiry applied on every Put.
func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithEncryption encrypts payloads before they are written.
func WithEncryption(enc *TokenEncryption) Option {
	return func(s *RedisStore) { s.encryption = enc }
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultRedisKeyPrefix,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRedisStoreFromURL parses a redis:// or rediss:// URL and creates a store.
func NewRedisStoreFromURL(rawURL string, opts ...Option) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(redisOpts), opts...), nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Get returns the credential for id, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*Credential, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session get error: %w", err)
	}

	plaintext, err := s.encryption.Open(data)
	if err != nil {
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, fmt.Errorf("session unmarshal error: %w", err)
	}
	return &cred, nil
}

// Put stores cred under id with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, id string, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("session marshal error: %w", err)
	}

	payload, err := s.encryption.Seal(data)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(id), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session set error: %w", err)
	}
	return nil
}

// Delete removes the credential for id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session delete error: %w", err)
	}
	return nil
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
