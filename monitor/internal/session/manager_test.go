package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/uplink"
	"github.com/Krimson/eda-forensics/monitor/internal/telemetry"
)

// feedSource отдает пакеты, подготовленные тестом; пустая очередь означает пустой канал
type feedSource struct {
	mu      sync.Mutex
	station *Station
	values  []float64
	ended   bool
}

func (s *feedSource) push(values ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, values...)
}

func (s *feedSource) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *feedSource) Fetch(ctx context.Context) (*uplink.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.station.Code()
	if len(s.values) > 0 {
		v := s.values[0]
		s.values = s.values[1:]
		return &uplink.Packet{Handshake: code, EDA: v, Subject: "S7"}, nil
	}
	if s.ended {
		return uplink.NewEnded(code, time.Now().UnixMilli()), nil
	}
	return nil, telemetry.ErrUplinkMissing
}

type managerFixture struct {
	manager *Manager
	store   *MemoryStore

	mu      sync.Mutex
	sources map[string]*feedSource
}

func (f *managerFixture) source(id string) *feedSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources[id]
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	_, client := newStubClient(t)
	f := &managerFixture{
		store:   NewMemoryStore(),
		sources: make(map[string]*feedSource),
	}

	f.manager = NewManager(ManagerConfig{
		Backend:    client,
		Logger:     client,
		Cache:      f.store,
		Repository: f.store,
		Profile:    profile.Default,
		Source: func(st *Station) (telemetry.Source, time.Duration) {
			f.mu.Lock()
			defer f.mu.Unlock()
			src := &feedSource{station: st}
			f.sources[st.ID()] = src
			return src, 5 * time.Millisecond
		},
		MLTimeout: 2 * time.Second,
	})
	t.Cleanup(f.manager.Shutdown)

	return f
}

func TestManager_Lifecycle(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, &CreateSessionRequest{Notes: "bench 3"})
	require.NoError(t, err)
	assert.Equal(t, StageLocked, session.Stage)
	assert.Equal(t, "bench 3", session.Notes)
	assert.Equal(t, 1, f.manager.ActiveCount())

	cached, err := f.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Code, cached.Code)

	src := f.source(session.ID)
	require.NotNil(t, src)
	src.push(1.0, 1.1, 1.2)

	require.Eventually(t, func() bool {
		resp, err := f.manager.GetSession(ctx, session.ID)
		return err == nil && resp.Session.Stage == StageOperational && resp.Session.TotalSamples == 3
	}, 2*time.Second, 5*time.Millisecond)

	resp, err := f.manager.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, "S7", resp.Session.Passport.Subject)

	_, err = f.manager.SaveSession(ctx, session.ID, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	stopped, err := f.manager.StopSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, StageForensic, stopped.Stage)

	station, ok := f.manager.Station(session.ID)
	require.True(t, ok)
	station.WaitBenchmark()

	saved, err := f.manager.SaveSession(ctx, session.ID, "reviewed")
	require.NoError(t, err)
	require.NotNil(t, saved.SavedAt)
	assert.Equal(t, "reviewed", saved.Notes)

	dossier, ok := f.store.GetDossier(session.ID)
	require.True(t, ok)
	assert.NotEmpty(t, dossier.Ranking)
	assert.Equal(t, StageForensic, dossier.Session.Stage)

	list, err := f.manager.ListSessions(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, session.ID, list[0].ID)

	require.NoError(t, f.manager.DeleteSession(ctx, session.ID))
	assert.Zero(t, f.manager.ActiveCount())

	_, err = f.manager.GetSession(ctx, session.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestManager_RemoteEndedStopsPolling(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, nil)
	require.NoError(t, err)

	src := f.source(session.ID)
	src.push(0.9, 0.95)
	src.end()

	station, ok := f.manager.Station(session.ID)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return station.Stage() == StageForensic
	}, 2*time.Second, 5*time.Millisecond)
	station.WaitBenchmark()

	assert.Equal(t, int64(2), station.Session().TotalSamples)
	_, err = f.manager.StopSession(ctx, session.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestManager_ResetRestartsPolling(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, nil)
	require.NoError(t, err)

	_, err = f.manager.ResetSession(ctx, session.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = f.manager.StopSession(ctx, session.ID)
	require.NoError(t, err)

	reset, err := f.manager.ResetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, StageLocked, reset.Stage)
	assert.NotEqual(t, session.Code, reset.Code)

	// новый цикл опроса принимает пакеты с новым кодом
	f.source(session.ID).push(1.0)
	require.Eventually(t, func() bool {
		resp, err := f.manager.GetSession(ctx, session.ID)
		return err == nil && resp.Session.Stage == StageOperational
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_ApplyProfile(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, nil)
	require.NoError(t, err)

	next := profile.Default()
	next.ArtifactThreshold = 9.0
	next.GraphBufferLimit = 10
	f.manager.ApplyProfile(next)

	station, _ := f.manager.Station(session.ID)
	station.mu.RLock()
	defer station.mu.RUnlock()
	assert.Equal(t, 9.0, station.prof.ArtifactThreshold)
	// емкость окна меняется только после сброса
	assert.Equal(t, 120, station.prof.GraphBufferLimit)
}

func TestManager_UnknownSession(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.StopSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = f.manager.Dossier(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	err = f.manager.DeleteSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
