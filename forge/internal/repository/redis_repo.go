package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Krimson/eda-forensics/forge/pkg/models"
)

const keyPrefix = "lab:session:"

type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(addr, password string, db int, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (r *RedisRepository) CheckConnection(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (r *RedisRepository) SaveSession(ctx context.Context, sessionID string, session *models.LabSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, keyPrefix+sessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}

	log.Printf("[FORGE] Session %s saved to Redis with TTL %v, rows: %d", sessionID, r.ttl, len(session.Rows))
	return nil
}

func (r *RedisRepository) GetSession(ctx context.Context, sessionID string) (*models.LabSession, error) {
	data, err := r.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session models.LabSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisRepository) DeleteSession(ctx context.Context, sessionID string) error {
	deleted, err := r.client.Del(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}

	log.Printf("[FORGE] Session %s deleted from Redis", sessionID)
	return nil
}

func (r *RedisRepository) GetStats() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var count int
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}

	stats := map[string]interface{}{
		"active_sessions": count,
		"ttl":             r.ttl.String(),
	}
	if err := iter.Err(); err != nil {
		stats["error"] = err.Error()
	}
	return stats
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
