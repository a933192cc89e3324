package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Krimson/eda-forensics/internal/audit"
)

// RedisStore реализует CacheStore для Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore создает новый экземпляр RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// ===== Ключи Redis =====

func sessionKey(sessionID string) string {
	return fmt.Sprintf("eda:session:%s:metadata", sessionID)
}

func framesKey(sessionID string) string {
	return fmt.Sprintf("eda:session:%s:matrix", sessionID)
}

func trialsKey(sessionID string) string {
	return fmt.Sprintf("eda:session:%s:ledger", sessionID)
}

func sessionKeys(sessionID string) []string {
	return []string{sessionKey(sessionID), framesKey(sessionID), trialsKey(sessionID)}
}

// Ping проверка соединения для health
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// ===== Управление сессиями =====

func (r *RedisStore) SetSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return r.client.Set(ctx, sessionKey(session.ID), data, 0).Err()
}

func (r *RedisStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (r *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeys(sessionID)...).Err()
}

func (r *RedisStore) SetSessionTTL(ctx context.Context, sessionID string, ttl time.Duration) error {
	pipe := r.client.Pipeline()
	for _, key := range sessionKeys(sessionID) {
		pipe.Expire(ctx, key, ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// ===== Матрица =====

// PushFrame кладет строку в голову списка и обрезает его до limit
func (r *RedisStore) PushFrame(ctx context.Context, sessionID string, frame ForensicFrame, limit int) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	key := framesKey(sessionID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, data)
	if limit > 0 {
		pipe.LTrim(ctx, key, 0, int64(limit-1))
	}

	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetFrames(ctx context.Context, sessionID string) ([]ForensicFrame, error) {
	data, err := r.client.LRange(ctx, framesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get frames: %w", err)
	}

	frames := make([]ForensicFrame, 0, len(data))
	for _, item := range data {
		var frame ForensicFrame
		if err := json.Unmarshal([]byte(item), &frame); err != nil {
			continue
		}
		frames = append(frames, frame)
	}

	return frames, nil
}

// ===== Журнал испытаний =====

func (r *RedisStore) SetTrials(ctx context.Context, sessionID string, trials []audit.Trial) error {
	data, err := json.Marshal(trials)
	if err != nil {
		return fmt.Errorf("failed to marshal trials: %w", err)
	}

	return r.client.Set(ctx, trialsKey(sessionID), data, 0).Err()
}

func (r *RedisStore) GetTrials(ctx context.Context, sessionID string) ([]audit.Trial, error) {
	data, err := r.client.Get(ctx, trialsKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trials: %w", err)
	}

	var trials []audit.Trial
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trials: %w", err)
	}

	return trials, nil
}
