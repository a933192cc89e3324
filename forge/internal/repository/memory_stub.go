package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/forge/pkg/models"
)

// RedisStub заглушка кэша сессий с TTL
type RedisStub struct {
	mutex    sync.RWMutex
	sessions map[string][]byte
	expires  map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewRedisStub(ttl time.Duration) *RedisStub {
	return &RedisStub{
		sessions: make(map[string][]byte),
		expires:  make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (r *RedisStub) CheckConnection(ctx context.Context) error {
	return nil
}

func (r *RedisStub) SaveSession(ctx context.Context, sessionID string, session *models.LabSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.sessions[sessionID] = data
	if r.ttl > 0 {
		r.expires[sessionID] = r.now().Add(r.ttl)
	}
	return nil
}

func (r *RedisStub) GetSession(ctx context.Context, sessionID string) (*models.LabSession, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	data, exists := r.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}

	// Истекшие записи удаляются при чтении
	if exp, ok := r.expires[sessionID]; ok && r.now().After(exp) {
		delete(r.sessions, sessionID)
		delete(r.expires, sessionID)
		return nil, fmt.Errorf("%w: %s", models.ErrSessionExpired, sessionID)
	}

	var session models.LabSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisStub) DeleteSession(ctx context.Context, sessionID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.sessions[sessionID]; !exists {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}

	delete(r.sessions, sessionID)
	delete(r.expires, sessionID)
	return nil
}

func (r *RedisStub) GetStats() map[string]interface{} {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return map[string]interface{}{
		"active_sessions": len(r.sessions),
		"session_ids":     sortedKeys(r.sessions),
	}
}

func (r *RedisStub) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	log.Printf("[FORGE] RedisStub closing, active sessions: %d", len(r.sessions))
	r.sessions = make(map[string][]byte)
	r.expires = make(map[string]time.Time)
	return nil
}

// PostgresStub заглушка архива сохраненных сессий
type PostgresStub struct {
	mutex    sync.RWMutex
	sessions map[string]*models.LabSession
}

func NewPostgresStub() *PostgresStub {
	return &PostgresStub{
		sessions: make(map[string]*models.LabSession),
	}
}

func (p *PostgresStub) SaveLabSession(ctx context.Context, session *models.LabSession) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	sessionCopy := *session
	sessionCopy.Status = models.StatusSaved
	p.sessions[session.SessionID] = &sessionCopy
	return nil
}

// GetLabSession сохраненная сессия
func (p *PostgresStub) GetLabSession(sessionID string) (*models.LabSession, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	session, ok := p.sessions[sessionID]
	return session, ok
}

func (p *PostgresStub) GetStats() map[string]interface{} {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	totalRows := 0
	for _, session := range p.sessions {
		totalRows += len(session.Rows)
	}

	return map[string]interface{}{
		"total_sessions": len(p.sessions),
		"total_rows":     totalRows,
	}
}

func (p *PostgresStub) Close() error {
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
