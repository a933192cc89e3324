package emulator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/subject/internal/models"
)

// Phase этап работы мобильного узла
type Phase string

const (
	PhaseIdentify   Phase = "IDENTIFY"
	PhaseBoot       Phase = "BOOT"
	PhaseProfile    Phase = "PROFILE"
	PhaseHandshake  Phase = "HANDSHAKE"
	PhaseTelemetry  Phase = "TELEMETRY"
	PhaseLaboratory Phase = "LABORATORY"
)

// SyncStatus состояние запечатывания цепи на этапе рукопожатия
type SyncStatus string

const (
	SyncIdle    SyncStatus = "IDLE"
	SyncPending SyncStatus = "PENDING"
	SyncError   SyncStatus = "ERROR"
	SyncSuccess SyncStatus = "SUCCESS"
)

var (
	ErrMissingCredentials = errors.New("session id and access key are required")
	ErrWrongPhase         = errors.New("operation not allowed in current phase")
)

// Machine конечный автомат этапов узла. Время передается явно.
type Machine struct {
	mu sync.Mutex

	phase       Phase
	sync        SyncStatus
	lead1       bool
	lead2       bool
	bootStarted time.Time
	syncStarted time.Time

	bootDuration time.Duration
	syncLock     time.Duration
	trail        *audit.Trail

	sessionID string
	passport  models.Passport
}

func NewMachine(bootDuration, syncLock time.Duration, trail *audit.Trail) *Machine {
	return &Machine{
		phase:        PhaseIdentify,
		sync:         SyncIdle,
		bootDuration: bootDuration,
		syncLock:     syncLock,
		trail:        trail,
	}
}

// Identify проверяет учетные данные узла и запускает загрузку ядра
func (m *Machine) Identify(sessionID, accessKey string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdentify {
		return fmt.Errorf("%w: identify in %s", ErrWrongPhase, m.phase)
	}
	if sessionID == "" || accessKey == "" {
		return ErrMissingCredentials
	}

	m.sessionID = sessionID
	m.passport.Handshake = accessKey
	m.phase = PhaseBoot
	m.bootStarted = now
	m.trail.Push(audit.LevelSys, "KERNEL INITIALIZATION INITIATED")
	return nil
}

// Register сохраняет паспорт испытуемого и переводит узел к рукопожатию
func (m *Machine) Register(p models.Passport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseProfile {
		return fmt.Errorf("%w: register in %s", ErrWrongPhase, m.phase)
	}

	p.Handshake = m.passport.Handshake
	m.passport = p
	m.phase = PhaseHandshake
	return nil
}

// SetLeads обновляет контакт с электродами
func (m *Machine) SetLeads(lead1, lead2 bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lead1, m.lead2 = lead1, lead2
	m.evaluate(now)
}

// Advance завершает этапы, ограниченные временем, и возвращает текущий этап
func (m *Machine) Advance(now time.Time) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseBoot:
		if now.Sub(m.bootStarted) >= m.bootDuration {
			m.phase = PhaseProfile
		}
	case PhaseHandshake:
		if m.sync == SyncPending && m.bothLeads() && now.Sub(m.syncStarted) >= m.syncLock {
			m.sync = SyncSuccess
			m.phase = PhaseTelemetry
			m.trail.Push(audit.LevelSys, "HANDSHAKE VERIFIED: LIVE")
		}
	}
	return m.phase
}

// Terminate локальная остановка сессии
func (m *Machine) Terminate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseLaboratory {
		return
	}
	m.phase = PhaseLaboratory
	m.trail.Push(audit.LevelCrit, "LOCAL TERMINATION INITIATED")
}

func (m *Machine) evaluate(now time.Time) {
	if m.phase != PhaseHandshake {
		return
	}

	switch {
	case m.bothLeads() && m.sync != SyncPending && m.sync != SyncSuccess:
		m.sync = SyncPending
		m.syncStarted = now
		m.trail.Push(audit.LevelSys, "CIRCUIT SEALED: SYNCING...")
	case m.sync == SyncPending && !m.bothLeads():
		m.sync = SyncError
		m.trail.Push(audit.LevelCrit, "ERROR: BIO-CIRCUIT BROKEN")
	}
}

func (m *Machine) bothLeads() bool {
	return m.lead1 && m.lead2
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) Sync() SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sync
}

// Contact оба электрода касаются кожи
func (m *Machine) Contact() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bothLeads()
}

func (m *Machine) Passport() models.Passport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passport
}
