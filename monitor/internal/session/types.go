package session

import (
	"errors"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/features"
	"github.com/Krimson/eda-forensics/internal/verdict"
)

var (
	// ErrSessionNotFound сессия не найдена ни в памяти, ни в кэше, ни в БД
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidTransition переход между стадиями запрещен
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// Stage стадия дашборда
type Stage string

const (
	StageLocked      Stage = "LOCKED"
	StageOperational Stage = "OPERATIONAL"
	StageForensic    Stage = "FORENSIC"
)

// Значения паспорта по умолчанию
const (
	DefaultSubject = "TEAM_SMS_SUBJECT"
	DefaultUnknown = "N/A"
)

// Passport идентификация субъекта. Обновляется по полям из каждого принятого пакета.
type Passport struct {
	Subject     string `json:"subject" yaml:"subject"`
	Age         string `json:"age" yaml:"age"`
	Sex         string `json:"sex" yaml:"sex"`
	Node        string `json:"node" yaml:"node"`
	SessionHash string `json:"sessionHash" yaml:"session_hash"`
}

// Session сводка сессии для API, кэша и БД
type Session struct {
	ID           string     `json:"id" yaml:"id"`
	Stage        Stage      `json:"stage" yaml:"stage"`
	Code         string     `json:"code" yaml:"code"`
	Fingerprint  string     `json:"fingerprint" yaml:"fingerprint"`
	Passport     Passport   `json:"passport" yaml:"passport"`
	StartedAt    time.Time  `json:"started_at" yaml:"started_at"`
	TerminatedAt *time.Time `json:"terminated_at,omitempty" yaml:"terminated_at,omitempty"`
	SavedAt      *time.Time `json:"saved_at,omitempty" yaml:"saved_at,omitempty"`
	TotalSamples int64      `json:"total_samples" yaml:"total_samples"`
	Notes        string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ForensicFrame строка матрицы, создаваемая на каждом защелкивании
type ForensicFrame struct {
	ID             string  `json:"id" yaml:"id"`
	Raw            float64 `json:"raw" yaml:"raw"`
	Refined        float64 `json:"refined" yaml:"refined"`
	TonicMean      float64 `json:"tonicMean" yaml:"tonic_mean"`
	Mean           float64 `json:"mean" yaml:"mean"`
	SignalEntropy  float64 `json:"signalEntropy" yaml:"signal_entropy"`
	StabilityIndex float64 `json:"stabilityIndex" yaml:"stability_index"`
	IsArtifact     bool    `json:"isArtifact" yaml:"is_artifact"`
	Timestamp      string  `json:"timestamp" yaml:"timestamp"`
	Epoch          int64   `json:"epoch" yaml:"epoch"`
	Degraded       bool    `json:"degraded" yaml:"degraded"`
}

// AuditReport запись живого аудитора: какой режим и алгоритмы дали метрики
type AuditReport struct {
	ID         int           `json:"id" yaml:"id"`
	Timestamp  string        `json:"timestamp" yaml:"timestamp"`
	Mode       audit.Mode    `json:"mode" yaml:"mode"`
	Techniques []string      `json:"techs" yaml:"techs"`
	Metrics    audit.Metrics `json:"metrics" yaml:"metrics"`
	Degraded   bool          `json:"degraded" yaml:"degraded"`
}

// Snapshot живое состояние станции для API и ленты
type Snapshot struct {
	Session     Session              `json:"session"`
	Diagnostics features.Diagnostics `json:"diagnostics"`
	Verdict     verdict.Verdict      `json:"verdict"`
	Raw         []float64            `json:"raw"`
	Refined     []float64            `json:"refined"`
	Matrix      []ForensicFrame      `json:"matrix"`
	Reports     []AuditReport        `json:"reports"`
	Benchmarked bool                 `json:"benchmarked"`
}

// Dossier итоговое досье сессии
type Dossier struct {
	Session       Session              `json:"session" yaml:"session"`
	Verdict       verdict.Verdict      `json:"verdict" yaml:"verdict"`
	Diagnostics   features.Diagnostics `json:"diagnostics" yaml:"diagnostics"`
	Findings      []string             `json:"findings" yaml:"findings"`
	Summary       string               `json:"summary" yaml:"summary"`
	Matrix        []ForensicFrame      `json:"matrix" yaml:"matrix"`
	Reports       []AuditReport        `json:"reports" yaml:"reports"`
	Ranking       []audit.Trial        `json:"ranking" yaml:"ranking"`
	LedgerVerdict audit.LedgerVerdict  `json:"ledger_verdict" yaml:"ledger_verdict"`
	Trail         []audit.Entry        `json:"trail" yaml:"trail"`
	GeneratedAt   time.Time            `json:"generated_at" yaml:"generated_at"`
}

// CreateSessionRequest запрос на создание сессии
type CreateSessionRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=512"`
}

// SaveSessionRequest запрос на сохранение досье
type SaveSessionRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=512"`
}

// SessionResponse ответ с информацией о сессии
type SessionResponse struct {
	Session  *Session  `json:"session"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}
