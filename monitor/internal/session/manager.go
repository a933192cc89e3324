package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
	"github.com/Krimson/eda-forensics/monitor/internal/telemetry"
)

// SourceFactory выдает источник опроса и его интервал для станции
type SourceFactory func(st *Station) (telemetry.Source, time.Duration)

// ManagerConfig зависимости менеджера сессий
type ManagerConfig struct {
	Backend    reconstruct.Backend
	Logger     TelemetryLogger
	Publisher  Publisher
	Cache      CacheStore
	Repository Repository

	// Profile возвращает текущий профиль ядра (с учетом горячей перезагрузки)
	Profile func() *profile.Profile
	Source  SourceFactory

	QueueDepth     int
	MLTimeout      time.Duration
	SessionDataTTL time.Duration
}

// runtime станция и ее цикл опроса
type runtime struct {
	station *Station
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager управляет станциями дашборда: создание, опрос, остановка, сброс и сохранение досье
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	stations map[string]*runtime
}

// NewManager создает новый менеджер сессий
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Publisher == nil {
		cfg.Publisher = LogPublisher{}
	}
	if cfg.Profile == nil {
		cfg.Profile = profile.Default
	}
	if cfg.SessionDataTTL <= 0 {
		cfg.SessionDataTTL = 24 * time.Hour
	}

	return &Manager{
		cfg:      cfg,
		stations: make(map[string]*runtime),
	}
}

// CreateSession создает станцию в стадии LOCKED и запускает опрос канала
func (m *Manager) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	sessionID := uuid.New().String()

	station, err := NewStation(sessionID, m.cfg.Profile(), Deps{
		Backend:    m.cfg.Backend,
		Logger:     m.cfg.Logger,
		Publisher:  m.cfg.Publisher,
		Cache:      m.cfg.Cache,
		QueueDepth: m.cfg.QueueDepth,
		MLTimeout:  m.cfg.MLTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create station: %w", err)
	}
	if req != nil && req.Notes != "" {
		station.SetNotes(req.Notes)
	}

	session := station.Session()
	if m.cfg.Cache != nil {
		if err := m.cfg.Cache.SetSession(ctx, &session); err != nil {
			station.Close()
			return nil, fmt.Errorf("failed to save session to cache: %w", err)
		}
	}

	rt := &runtime{station: station}

	m.mu.Lock()
	m.stations[sessionID] = rt
	m.startPollerLocked(rt)
	m.mu.Unlock()

	log.Printf("[SESSION] Created new session: %s", sessionID)
	return &session, nil
}

// startPollerLocked запускает цикл опроса станции. Вызывается под m.mu.
func (m *Manager) startPollerLocked(rt *runtime) {
	source, interval := m.cfg.Source(rt.station)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	rt.cancel = cancel
	rt.done = done

	name := rt.station.ID()
	if len(name) > 8 {
		name = name[:8]
	}
	poller := telemetry.NewPoller("session-"+name, source, rt.station, interval)

	go func() {
		defer close(done)
		poller.Run(ctx)
	}()
}

func stopPoller(rt *runtime) {
	if rt.cancel == nil {
		return
	}
	rt.cancel()
	<-rt.done
}

// Station возвращает живую станцию
func (m *Manager) Station(sessionID string) (*Station, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rt, ok := m.stations[sessionID]
	if !ok {
		return nil, false
	}
	return rt.station, true
}

// GetSession ищет сессию в памяти, затем в кэше, затем в БД.
// Для живой станции возвращается и снимок состояния.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*SessionResponse, error) {
	if station, ok := m.Station(sessionID); ok {
		snapshot := station.Snapshot()
		session := snapshot.Session
		return &SessionResponse{Session: &session, Snapshot: &snapshot}, nil
	}

	if m.cfg.Cache != nil {
		if session, err := m.cfg.Cache.GetSession(ctx, sessionID); err == nil {
			return &SessionResponse{Session: session}, nil
		}
	}

	if m.cfg.Repository != nil {
		session, err := m.cfg.Repository.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return &SessionResponse{Session: session}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// ListSessions живые станции и сохраненные досье, новые первыми
func (m *Manager) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	seen := make(map[string]bool)
	var sessions []*Session

	m.mu.RLock()
	for id, rt := range m.stations {
		session := rt.station.Session()
		sessions = append(sessions, &session)
		seen[id] = true
	}
	m.mu.RUnlock()

	if m.cfg.Repository != nil {
		saved, err := m.cfg.Repository.ListSessions(ctx, limit+offset, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list saved sessions: %w", err)
		}
		for _, session := range saved {
			if !seen[session.ID] {
				sessions = append(sessions, session)
			}
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
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

// StopSession завершение оператором: FORENSIC, остановка опроса, полный перебор
func (m *Manager) StopSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	rt, ok := m.stations[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if err := rt.station.Stop(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	stopPoller(rt)
	m.mu.Unlock()

	if m.cfg.Cache != nil {
		if err := m.cfg.Cache.SetSessionTTL(ctx, sessionID, m.cfg.SessionDataTTL); err != nil {
			log.Printf("[WARN] Failed to set session TTL: %v", err)
		}
	}

	session := rt.station.Session()
	log.Printf("[SESSION] Stopped session: %s, samples: %d", sessionID, session.TotalSamples)
	return &session, nil
}

// ResetSession возвращает станцию из FORENSIC в LOCKED с новым кодом и снова запускает опрос
func (m *Manager) ResetSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, ok := m.stations[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	stopPoller(rt)
	if err := rt.station.Reset(); err != nil {
		return nil, err
	}
	m.startPollerLocked(rt)

	session := rt.station.Session()
	return &session, nil
}

// SaveSession сохраняет досье завершенной сессии в БД
func (m *Manager) SaveSession(ctx context.Context, sessionID, notes string) (*Session, error) {
	station, ok := m.Station(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if station.Stage() != StageForensic {
		return nil, fmt.Errorf("%w: save requires %s stage", ErrInvalidTransition, StageForensic)
	}
	if m.cfg.Repository == nil {
		return nil, errors.New("session repository is not configured")
	}

	if notes != "" {
		station.SetNotes(notes)
	}
	station.MarkSaved(time.Now())

	dossier := station.Dossier()
	if err := m.cfg.Repository.SaveDossier(ctx, dossier); err != nil {
		return nil, fmt.Errorf("failed to save session to database: %w", err)
	}

	if m.cfg.Cache != nil {
		if err := m.cfg.Cache.SetSession(ctx, &dossier.Session); err != nil {
			log.Printf("[WARN] Failed to update session status in cache: %v", err)
		}
	}

	log.Printf("[SESSION] Saved session to database: %s", sessionID)
	return &dossier.Session, nil
}

// Dossier досье живой станции
func (m *Manager) Dossier(ctx context.Context, sessionID string) (*Dossier, error) {
	station, ok := m.Station(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return station.Dossier(), nil
}

// DeleteSession удаляет станцию и все сохраненные данные сессии
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	rt, live := m.stations[sessionID]
	delete(m.stations, sessionID)
	m.mu.Unlock()

	if live {
		stopPoller(rt)
		rt.station.Close()
	}

	if m.cfg.Cache != nil {
		if err := m.cfg.Cache.DeleteSession(ctx, sessionID); err != nil {
			log.Printf("[WARN] Failed to delete session from cache: %v", err)
		}
	}

	if m.cfg.Repository != nil {
		err := m.cfg.Repository.DeleteSession(ctx, sessionID)
		if err != nil && !(live && errors.Is(err, ErrSessionNotFound)) {
			return fmt.Errorf("failed to delete session from database: %w", err)
		}
	} else if !live {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	log.Printf("[SESSION] Deleted session: %s", sessionID)
	return nil
}

// ApplyProfile раздает новый профиль всем живым станциям
func (m *Manager) ApplyProfile(p *profile.Profile) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rt := range m.stations {
		rt.station.ApplyProfile(p)
	}
	log.Printf("[SESSION] Profile applied to %d stations", len(m.stations))
}

// ActiveCount число живых станций
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stations)
}

// Shutdown останавливает все циклы опроса и очереди
func (m *Manager) Shutdown() {
	m.mu.Lock()
	stations := m.stations
	m.stations = make(map[string]*runtime)
	m.mu.Unlock()

	for _, rt := range stations {
		stopPoller(rt)
		rt.station.Close()
	}
	log.Printf("[SESSION] Manager stopped, stations closed: %d", len(stations))
}
