package session

import (
	"context"
	"log"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
)

// Repository долговременное хранилище досье (PostgreSQL)
type Repository interface {
	SaveDossier(ctx context.Context, dossier *Dossier) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// CacheStore кэш живого состояния сессии (Redis)
type CacheStore interface {
	SetSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Матрица (новые первыми, не длиннее limit)
	PushFrame(ctx context.Context, sessionID string, frame ForensicFrame, limit int) error
	GetFrames(ctx context.Context, sessionID string) ([]ForensicFrame, error)

	// Журнал испытаний перезаписывается целиком
	SetTrials(ctx context.Context, sessionID string, trials []audit.Trial) error
	GetTrials(ctx context.Context, sessionID string) ([]audit.Trial, error)

	SetSessionTTL(ctx context.Context, sessionID string, ttl time.Duration) error
}

// Publisher получатель событий станции (живая лента)
type Publisher interface {
	Publish(sessionID, kind string, data interface{})
}

// Типы событий ленты
const (
	EventSample  = "sample"
	EventFrame   = "frame"
	EventStage   = "stage"
	EventTrail   = "trail"
	EventLedger  = "ledger"
	EventVerdict = "verdict"
)

// LogPublisher пишет события в журнал процесса
type LogPublisher struct{}

func (LogPublisher) Publish(sessionID, kind string, data interface{}) {
	if kind == EventSample {
		return
	}
	log.Printf("[SESSION] event session=%s type=%s", sessionID, kind)
}

// TelemetryLogger приемник строк признаков (/log_telemetry бэкенда)
type TelemetryLogger interface {
	LogTelemetry(ctx context.Context, row any) error
}
