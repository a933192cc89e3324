package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/Krimson/eda-forensics/forge/pkg/models"
	"github.com/Krimson/eda-forensics/internal/audit"
)

type PostgreSQLRepository struct {
	db *sql.DB
}

func NewPostgreSQLRepository(connStr string) (*PostgreSQLRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	// Создаем таблицу если не существует
	createTableSQL := `
    CREATE TABLE IF NOT EXISTS lab_sessions (
        session_id TEXT PRIMARY KEY,
        file_name TEXT NOT NULL,
        rows JSONB NOT NULL,
        trials JSONB NOT NULL,
        row_count INTEGER NOT NULL,
        cleaned BOOLEAN NOT NULL,
        best_trial TEXT,
        verdict TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL,
        saved_at TIMESTAMP NOT NULL,
        status TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_lab_sessions_created_at ON lab_sessions(created_at);
    `

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &PostgreSQLRepository{db: db}, nil
}

func (r *PostgreSQLRepository) SaveLabSession(ctx context.Context, session *models.LabSession) error {
	rowsJSON, err := json.Marshal(session.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}
	trialsJSON, err := json.Marshal(session.Trials)
	if err != nil {
		return fmt.Errorf("failed to marshal trials: %w", err)
	}

	ledger := audit.RestoreLedger(len(session.Trials), session.Trials, session.TrialCounter)
	verdict := ledger.Verdict()

	var bestTrial sql.NullString
	if verdict.Best != nil {
		bestTrial = sql.NullString{String: verdict.Best.ID, Valid: true}
	}

	query := `
    INSERT INTO lab_sessions (session_id, file_name, rows, trials, row_count, cleaned, best_trial, verdict, created_at, saved_at, status)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    ON CONFLICT (session_id)
    DO UPDATE SET rows = $3, trials = $4, row_count = $5, cleaned = $6, best_trial = $7, verdict = $8, saved_at = $10, status = $11
    `

	_, err = r.db.ExecContext(ctx, query,
		session.SessionID,
		session.FileName,
		rowsJSON,
		trialsJSON,
		len(session.Rows),
		session.Cleaned,
		bestTrial,
		string(verdict.Status),
		session.CreatedAt,
		time.Now(),
		models.StatusSaved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lab session: %w", err)
	}

	log.Printf("[FORGE] Session %s saved to PostgreSQL: rows=%d trials=%d verdict=%s",
		session.SessionID, len(session.Rows), len(session.Trials), verdict.Status)
	return nil
}

func (r *PostgreSQLRepository) GetStats() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var sessions, rows int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(row_count), 0) FROM lab_sessions`).Scan(&sessions, &rows)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	return map[string]interface{}{
		"total_sessions": sessions,
		"total_rows":     rows,
	}
}

func (r *PostgreSQLRepository) Close() error {
	return r.db.Close()
}
