package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty в канале еще нет ни одного пакета
var ErrEmpty = errors.New("relay is empty")

// Store хранит последний пакет канала датчик -> дашборд
type Store interface {
	Put(ctx context.Context, payload []byte) error
	Get(ctx context.Context) ([]byte, error)
}

// RedisStore хранит пакет в одном ключе Redis
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore создает хранилище; ttl = 0 хранит ключ бессрочно
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, payload []byte) error {
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store relay packet: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read relay packet: %w", err)
	}
	return data, nil
}

// MemoryStore хранилище в памяти процесса, когда Redis недоступен
type MemoryStore struct {
	mu      sync.RWMutex
	payload []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Put(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = append([]byte(nil), payload...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return nil, ErrEmpty
	}
	return append([]byte(nil), s.payload...), nil
}
