package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
)

// MemoryStore заглушка Redis и PostgreSQL в памяти процесса.
// Используется, когда внешние хранилища не настроены, и в тестах.
type MemoryStore struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
	frames   map[string][]ForensicFrame
	trials   map[string][]audit.Trial
	dossiers map[string]*Dossier
	expiry   map[string]time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		frames:   make(map[string][]ForensicFrame),
		trials:   make(map[string][]audit.Trial),
		dossiers: make(map[string]*Dossier),
		expiry:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// expiredLocked удаляет данные сессии с истекшим TTL
func (m *MemoryStore) expiredLocked(sessionID string) bool {
	deadline, ok := m.expiry[sessionID]
	if !ok || m.now().Before(deadline) {
		return false
	}
	delete(m.sessions, sessionID)
	delete(m.frames, sessionID)
	delete(m.trials, sessionID)
	delete(m.expiry, sessionID)
	return true
}

func (m *MemoryStore) SetSession(ctx context.Context, session *Session) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	sessionCopy := *session
	m.sessions[session.ID] = &sessionCopy
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.expiredLocked(sessionID) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if session, ok := m.sessions[sessionID]; ok {
		sessionCopy := *session
		return &sessionCopy, nil
	}
	if dossier, ok := m.dossiers[sessionID]; ok {
		sessionCopy := dossier.Session
		return &sessionCopy, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	_, live := m.sessions[sessionID]
	_, saved := m.dossiers[sessionID]

	delete(m.sessions, sessionID)
	delete(m.frames, sessionID)
	delete(m.trials, sessionID)
	delete(m.expiry, sessionID)
	delete(m.dossiers, sessionID)

	if !live && !saved {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

func (m *MemoryStore) SetSessionTTL(ctx context.Context, sessionID string, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.expiry[sessionID] = m.now().Add(ttl)
	return nil
}

func (m *MemoryStore) PushFrame(ctx context.Context, sessionID string, frame ForensicFrame, limit int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.frames[sessionID] = prependBounded(m.frames[sessionID], frame, limit)
	return nil
}

func (m *MemoryStore) GetFrames(ctx context.Context, sessionID string) ([]ForensicFrame, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.expiredLocked(sessionID) {
		return nil, nil
	}
	return append([]ForensicFrame(nil), m.frames[sessionID]...), nil
}

func (m *MemoryStore) SetTrials(ctx context.Context, sessionID string, trials []audit.Trial) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.trials[sessionID] = append([]audit.Trial(nil), trials...)
	return nil
}

func (m *MemoryStore) GetTrials(ctx context.Context, sessionID string) ([]audit.Trial, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.expiredLocked(sessionID) {
		return nil, nil
	}
	return append([]audit.Trial(nil), m.trials[sessionID]...), nil
}

// ===== Repository =====

func (m *MemoryStore) SaveDossier(ctx context.Context, dossier *Dossier) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	dossierCopy := *dossier
	m.dossiers[dossier.Session.ID] = &dossierCopy

	log.Printf("[INFO] MemoryStore: dossier %s saved, frames=%d trials=%d",
		dossier.Session.ID, len(dossier.Matrix), len(dossier.Ranking))
	return nil
}

// GetDossier сохраненное досье (для тестов и отладки)
func (m *MemoryStore) GetDossier(sessionID string) (*Dossier, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	dossier, ok := m.dossiers[sessionID]
	return dossier, ok
}

func (m *MemoryStore) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	sessions := make([]*Session, 0, len(m.dossiers))
	for _, dossier := range m.dossiers {
		sessionCopy := dossier.Session
		sessions = append(sessions, &sessionCopy)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	if offset >= len(sessions) {
		return []*Session{}, nil
	}
	sessions = sessions[offset:]
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Ping всегда успешен
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
