package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
)

// ErrNoRows партия с таким номером не найдена
var ErrNoRows = errors.New("archive batch not found")

// Batch один заархивированный файл признаков
type Batch struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Artifacts int       `json:"artifacts"`
	MeanEDA   float64   `json:"mean_eda"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive локальный SQLite архив строк признаков и испытаний журнала
type Archive struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    artifacts INTEGER NOT NULL,
    mean_eda REAL NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_rows (
    batch_id INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    age TEXT NOT NULL,
    gen TEXT NOT NULL,
    bsr TEXT NOT NULL,
    win TEXT NOT NULL,
    eda_mean REAL NOT NULL,
    eda_std REAL NOT NULL,
    scl_tonic REAL NOT NULL,
    scr_peaks REAL NOT NULL,
    scr_amp REAL NOT NULL,
    slope_max REAL NOT NULL,
    hf_energy REAL NOT NULL,
    entropy REAL NOT NULL,
    motion INTEGER NOT NULL,
    reported_motion INTEGER NOT NULL,
    PRIMARY KEY (batch_id, position)
);

CREATE TABLE IF NOT EXISTS trials (
    batch_id INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    trial_id TEXT NOT NULL,
    mode TEXT NOT NULL,
    techniques TEXT NOT NULL,
    smoothness_score REAL NOT NULL,
    noise_suppression REAL NOT NULL,
    stability_index REAL NOT NULL,
    total_score REAL NOT NULL,
    failed INTEGER NOT NULL,
    degraded INTEGER NOT NULL,
    stamp TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,
    PRIMARY KEY (batch_id, position)
);
`

// Open открывает (или создает) архив по пути к файлу
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveRows архивирует строки файла признаков одной партией и возвращает ее номер
func (a *Archive) SaveRows(ctx context.Context, source string, rows []ingest.Row, summary ingest.Summary) (int64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO batches (source, row_count, artifacts, mean_eda, created_at) VALUES (?, ?, ?, ?, ?)`,
		source, len(rows), summary.Artifacts, summary.MeanEDA, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read batch id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO feature_rows (batch_id, position, user_id, age, gen, bsr, win,
            eda_mean, eda_std, scl_tonic, scr_peaks, scr_amp, slope_max, hf_energy, entropy,
            motion, reported_motion)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, batchID, i,
			r.UserID, r.Age, r.Gen, r.BSR, r.Win,
			r.EDAMean, r.EDAStd, r.SCLTonic, r.SCRPeaks, r.SCRAmp, r.SlopeMax, r.HFEnergy, r.Entropy,
			r.Motion, r.ReportedMotion,
		); err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}

	log.Printf("[INFO] Archived batch %d from %s: %d rows", batchID, source, len(rows))
	return batchID, nil
}

// SaveTrials заменяет испытания партии
func (a *Archive) SaveTrials(ctx context.Context, batchID int64, trials []audit.Trial) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE id = ?`, batchID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check batch: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %d", ErrNoRows, batchID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trials WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("failed to clear trials: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO trials (batch_id, position, trial_id, mode, techniques,
            smoothness_score, noise_suppression, stability_index, total_score,
            failed, degraded, stamp, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trial insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range trials {
		if _, err := stmt.ExecContext(ctx, batchID, i,
			t.ID, string(t.Mode), strings.Join(t.Techniques, "+"),
			t.Metrics.SmoothnessScore, t.Metrics.NoiseSuppression, t.Metrics.StabilityIndex, t.TotalScore,
			t.Failed, t.Degraded, t.Timestamp, t.RecordedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to insert trial %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// Batches последние партии, новые первыми
func (a *Archive) Batches(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
        SELECT id, source, row_count, artifacts, mean_eda, created_at
        FROM batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var created int64
		if err := rows.Scan(&b.ID, &b.Source, &b.Rows, &b.Artifacts, &b.MeanEDA, &created); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.CreatedAt = time.UnixMilli(created)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Rows строки партии в исходном порядке
func (a *Archive) Rows(ctx context.Context, batchID int64) ([]ingest.Row, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT user_id, age, gen, bsr, win, eda_mean, eda_std, scl_tonic, scr_peaks, scr_amp,
            slope_max, hf_energy, entropy, motion, reported_motion
        FROM feature_rows WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []ingest.Row
	for rows.Next() {
		var r ingest.Row
		if err := rows.Scan(&r.UserID, &r.Age, &r.Gen, &r.BSR, &r.Win,
			&r.EDAMean, &r.EDAStd, &r.SCLTonic, &r.SCRPeaks, &r.SCRAmp,
			&r.SlopeMax, &r.HFEnergy, &r.Entropy, &r.Motion, &r.ReportedMotion); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoRows, batchID)
	}
	return out, nil
}

// Trials испытания партии в порядке записи
func (a *Archive) Trials(ctx context.Context, batchID int64) ([]audit.Trial, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT trial_id, mode, techniques, smoothness_score, noise_suppression, stability_index,
            total_score, failed, degraded, stamp, recorded_at
        FROM trials WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var out []audit.Trial
	for rows.Next() {
		var t audit.Trial
		var mode, techniques string
		var recorded int64
		if err := rows.Scan(&t.ID, &mode, &techniques,
			&t.Metrics.SmoothnessScore, &t.Metrics.NoiseSuppression, &t.Metrics.StabilityIndex,
			&t.TotalScore, &t.Failed, &t.Degraded, &t.Timestamp, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		t.Mode = audit.Mode(mode)
		if techniques != "" {
			t.Techniques = strings.Split(techniques, "+")
		}
		t.RecordedAt = time.UnixMilli(recorded)
		out = append(out, t)
	}
	return out, rows.Err()
}
