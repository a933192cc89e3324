package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository реализует Repository для PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository создает новый экземпляр PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// NewPostgresRepositoryFromDSN создает репозиторий из строки подключения
func NewPostgresRepositoryFromDSN(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройки пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close закрывает соединение с БД
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping проверка соединения для health
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS eda_sessions (
		id            TEXT PRIMARY KEY,
		stage         TEXT NOT NULL,
		code          TEXT NOT NULL,
		fingerprint   TEXT NOT NULL,
		passport      JSONB NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		terminated_at TIMESTAMPTZ,
		saved_at      TIMESTAMPTZ,
		total_samples BIGINT NOT NULL DEFAULT 0,
		notes         TEXT NOT NULL DEFAULT '',
		verdict       JSONB NOT NULL,
		diagnostics   JSONB NOT NULL,
		summary       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS eda_frames (
		session_id      TEXT NOT NULL REFERENCES eda_sessions(id) ON DELETE CASCADE,
		frame_id        TEXT NOT NULL,
		raw             DOUBLE PRECISION NOT NULL,
		refined         DOUBLE PRECISION NOT NULL,
		tonic_mean      DOUBLE PRECISION NOT NULL,
		signal_entropy  DOUBLE PRECISION NOT NULL,
		stability_index DOUBLE PRECISION NOT NULL,
		is_artifact     BOOLEAN NOT NULL,
		degraded        BOOLEAN NOT NULL,
		epoch           BIGINT NOT NULL,
		PRIMARY KEY (session_id, frame_id)
	)`,
	`CREATE TABLE IF NOT EXISTS eda_trials (
		session_id  TEXT NOT NULL REFERENCES eda_sessions(id) ON DELETE CASCADE,
		rank        INT NOT NULL,
		trial_id    TEXT NOT NULL,
		mode        TEXT NOT NULL,
		techs       JSONB NOT NULL,
		metrics     JSONB NOT NULL,
		total_score DOUBLE PRECISION NOT NULL,
		failed      BOOLEAN NOT NULL,
		PRIMARY KEY (session_id, rank)
	)`,
}

// EnsureSchema создает таблицы досье, если их нет
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SaveDossier сохраняет сессию, матрицу и ранжирование одной транзакцией.
// Повторное сохранение перезаписывает досье.
func (r *PostgresRepository) SaveDossier(ctx context.Context, dossier *Dossier) error {
	passportJSON, err := json.Marshal(dossier.Session.Passport)
	if err != nil {
		return fmt.Errorf("failed to marshal passport: %w", err)
	}
	verdictJSON, err := json.Marshal(dossier.Verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}
	diagnosticsJSON, err := json.Marshal(dossier.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := dossier.Session
	_, err = tx.ExecContext(ctx, `
		INSERT INTO eda_sessions (id, stage, code, fingerprint, passport, started_at, terminated_at, saved_at,
			total_samples, notes, verdict, diagnostics, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			passport = EXCLUDED.passport,
			terminated_at = EXCLUDED.terminated_at,
			saved_at = EXCLUDED.saved_at,
			total_samples = EXCLUDED.total_samples,
			notes = EXCLUDED.notes,
			verdict = EXCLUDED.verdict,
			diagnostics = EXCLUDED.diagnostics,
			summary = EXCLUDED.summary
	`,
		s.ID, s.Stage, s.Code, s.Fingerprint, passportJSON, s.StartedAt, s.TerminatedAt, s.SavedAt,
		s.TotalSamples, s.Notes, verdictJSON, diagnosticsJSON, dossier.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, query := range []string{
		"DELETE FROM eda_frames WHERE session_id = $1",
		"DELETE FROM eda_trials WHERE session_id = $1",
	} {
		if _, err := tx.ExecContext(ctx, query, s.ID); err != nil {
			return fmt.Errorf("failed to clear dossier data: %w", err)
		}
	}

	frameStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO eda_frames (session_id, frame_id, raw, refined, tonic_mean, signal_entropy,
			stability_index, is_artifact, degraded, epoch)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer frameStmt.Close()

	for _, f := range dossier.Matrix {
		if _, err := frameStmt.ExecContext(ctx, s.ID, f.ID, f.Raw, f.Refined, f.TonicMean, f.SignalEntropy,
			f.StabilityIndex, f.IsArtifact, f.Degraded, f.Epoch); err != nil {
			return fmt.Errorf("failed to insert frame: %w", err)
		}
	}

	trialStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO eda_trials (session_id, rank, trial_id, mode, techs, metrics, total_score, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer trialStmt.Close()

	for idx, t := range dossier.Ranking {
		techsJSON, err := json.Marshal(t.Techniques)
		if err != nil {
			return fmt.Errorf("failed to marshal techniques: %w", err)
		}
		metricsJSON, err := json.Marshal(t.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		if _, err := trialStmt.ExecContext(ctx, s.ID, idx+1, t.ID, t.Mode, techsJSON, metricsJSON,
			t.Score(), t.Failed); err != nil {
			return fmt.Errorf("failed to insert trial: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const sessionColumns = `id, stage, code, fingerprint, passport, started_at, terminated_at, saved_at, total_samples, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var session Session
	var passportJSON []byte

	err := row.Scan(
		&session.ID,
		&session.Stage,
		&session.Code,
		&session.Fingerprint,
		&passportJSON,
		&session.StartedAt,
		&session.TerminatedAt,
		&session.SavedAt,
		&session.TotalSamples,
		&session.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(passportJSON, &session.Passport); err != nil {
		return nil, fmt.Errorf("failed to unmarshal passport: %w", err)
	}

	return &session, nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM eda_sessions WHERE id = $1`, sessionID)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (r *PostgresRepository) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM eda_sessions ORDER BY started_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			continue // Пропускаем поврежденные записи
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, sessionID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM eda_sessions WHERE id = $1", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	return nil
}
