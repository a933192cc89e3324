package models

import (
	"errors"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
)

// Статусы лабораторной сессии
const (
	StatusPending = "pending"
	StatusSaved   = "saved"
)

// LabSession загруженный файл признаков и журнал испытаний над ним
type LabSession struct {
	SessionID    string         `json:"session_id"`
	FileName     string         `json:"file_name"`
	Rows         []ingest.Row   `json:"rows"`
	Summary      ingest.Summary `json:"summary"`
	Trials       []audit.Trial  `json:"trials"`
	TrialCounter int            `json:"trial_counter"`
	Cleaned      bool           `json:"cleaned"`
	CreatedAt    time.Time      `json:"created_at"`
	Status       string         `json:"status"`
}

type CleanRequest struct {
	SessionID  string   `json:"session_id" validate:"required,max=64"`
	Mode       string   `json:"mode,omitempty" validate:"omitempty,oneof=solo hybrid"`
	Techniques []string `json:"techniques,omitempty" validate:"omitempty,max=7,dive,required"`
}

type BenchmarkRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
}

type SaveDecision struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
	Save      bool   `json:"save"`
}

type UploadResponse struct {
	SessionID string         `json:"session_id"`
	Status    string         `json:"status"`
	Rows      []ingest.Row   `json:"rows"`
	Summary   ingest.Summary `json:"summary"`
	Message   string         `json:"message,omitempty"`
}

type CleanResponse struct {
	SessionID string       `json:"session_id"`
	Applied   bool         `json:"applied"`
	Trial     audit.Trial  `json:"trial"`
	Rows      []ingest.Row `json:"rows"`
	Message   string       `json:"message,omitempty"`
}

type SessionResponse struct {
	SessionID string              `json:"session_id"`
	Status    string              `json:"status"`
	FileName  string              `json:"file_name"`
	Cleaned   bool                `json:"cleaned"`
	Rows      []ingest.Row        `json:"rows"`
	Summary   ingest.Summary      `json:"summary"`
	Ranking   []audit.Trial       `json:"ranking"`
	Verdict   audit.LedgerVerdict `json:"verdict"`
}

type DecisionResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Ошибки
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)
