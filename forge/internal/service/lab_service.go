package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Krimson/eda-forensics/forge/pkg/models"
	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

// LabService офлайн-лаборатория: загрузка файла признаков, очистка, перебор и решение о сохранении
type LabService struct {
	backend   reconstruct.Backend
	cacheRepo CacheRepository
	dbRepo    DBRepository
	prof      *profile.Profile
	timeout   time.Duration
	now       func() time.Time
}

func NewLabService(
	backend reconstruct.Backend,
	cacheRepo CacheRepository,
	dbRepo DBRepository,
	prof *profile.Profile,
	timeout time.Duration,
) *LabService {
	if prof == nil {
		prof = profile.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &LabService{
		backend:   backend,
		cacheRepo: cacheRepo,
		dbRepo:    dbRepo,
		prof:      prof,
		timeout:   timeout,
		now:       time.Now,
	}
}

// ProcessUpload разбирает файл признаков и кэширует его как новую сессию
func (s *LabService) ProcessUpload(ctx context.Context, file io.Reader, fileName, sessionID string) (*models.UploadResponse, error) {
	rows, summary, err := ingest.Parse(file, s.prof.ArtifactThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature CSV: %w", err)
	}

	session := &models.LabSession{
		SessionID: sessionID,
		FileName:  fileName,
		Rows:      rows,
		Summary:   summary,
		Trials:    []audit.Trial{},
		CreatedAt: s.now(),
		Status:    models.StatusPending,
	}

	if err := s.cacheRepo.SaveSession(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	log.Printf("[FORGE] Session %s uploaded: file=%s rows=%d skipped=%d artifacts=%d",
		sessionID, fileName, summary.Rows, summary.Skipped, summary.Artifacts)

	return &models.UploadResponse{
		SessionID: sessionID,
		Status:    models.StatusPending,
		Rows:      rows,
		Summary:   summary,
		Message:   "Data parsed and ready for reconstruction",
	}, nil
}

// Clean запускает реконструкцию над колонкой EDA_Mean. При успехе SCL_Tonic и Motion
// пересчитываются; при отказе бэкенда в журнал пишется упавшее испытание, строки не меняются.
func (s *LabService) Clean(ctx context.Context, req *models.CleanRequest) (*models.CleanResponse, error) {
	mode := audit.Mode(req.Mode)
	if mode == "" {
		mode = audit.Mode(s.prof.MLMode)
	}
	techniques := req.Techniques
	if len(techniques) == 0 {
		techniques = s.prof.MLTechniques
	}
	for _, t := range techniques {
		if !reconstruct.ValidTechnique(t) {
			return nil, fmt.Errorf("%w: %s", reconstruct.ErrUnknownTechnique, t)
		}
	}

	session, err := s.cacheRepo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session data: %w", err)
	}

	ledger := audit.RestoreLedger(s.prof.LedgerLimit, session.Trials, session.TrialCounter)
	rec := reconstruct.NewReconstructor(s.backend, s.fallbackParams(), ledger)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cleaned, trial, err := rec.CleanRows(callCtx, session.Rows, mode, techniques, s.prof.DivergenceDelta)

	response := &models.CleanResponse{SessionID: session.SessionID, Trial: trial}
	if err != nil {
		log.Printf("[WARN] [FORGE] Session %s left untouched: %v", session.SessionID, err)
		response.Message = "Reconstruction failed, rows left untouched"
	} else {
		session.Rows = cleaned
		session.Cleaned = true
		response.Applied = true
		response.Message = "Reconstruction applied"
	}

	session.Trials = ledger.Trials()
	session.TrialCounter = ledger.Counter()
	if err := s.cacheRepo.SaveSession(ctx, session.SessionID, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	response.Rows = session.Rows
	return response, nil
}

// Benchmark полный перебор 127 комбинаций по исходной колонке EDA_Mean.
// Результаты B-1..B-n заменяют журнал сессии.
func (s *LabService) Benchmark(ctx context.Context, sessionID string) (*models.SessionResponse, error) {
	session, err := s.cacheRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session data: %w", err)
	}

	ledger := audit.RestoreLedger(s.prof.LedgerLimit, session.Trials, session.TrialCounter)
	rec := reconstruct.NewReconstructor(s.backend, s.fallbackParams(), ledger)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Printf("[FORGE] Benchmark started for session %s over %d rows", sessionID, len(session.Rows))
	if _, err := rec.Benchmark(callCtx, ingest.EDAMeans(session.Rows)); err != nil {
		return nil, err
	}

	session.Trials = ledger.Trials()
	session.TrialCounter = ledger.Counter()
	if err := s.cacheRepo.SaveSession(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sessionResponse(session, ledger), nil
}

// GetSession строки, ранжированный журнал и вывод аудитора
func (s *LabService) GetSession(ctx context.Context, sessionID string) (*models.SessionResponse, error) {
	session, err := s.cacheRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session data: %w", err)
	}

	ledger := audit.RestoreLedger(s.prof.LedgerLimit, session.Trials, session.TrialCounter)
	return sessionResponse(session, ledger), nil
}

// Export выгружает текущие (возможно очищенные) строки в CSV
func (s *LabService) Export(ctx context.Context, sessionID string, w io.Writer) error {
	session, err := s.cacheRepo.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session data: %w", err)
	}
	return ingest.Write(w, session.Rows)
}

func (s *LabService) HandleDecision(ctx context.Context, decision *models.SaveDecision) (*models.DecisionResponse, error) {
	log.Printf("[FORGE] Processing decision for session %s: save=%t", decision.SessionID, decision.Save)

	session, err := s.cacheRepo.GetSession(ctx, decision.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session data: %w", err)
	}

	if !decision.Save {
		if err := s.cacheRepo.DeleteSession(ctx, decision.SessionID); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}

		return &models.DecisionResponse{
			Status:  "cancelled",
			Message: "Data was not saved and has been deleted",
			Data: map[string]interface{}{
				"session_id": decision.SessionID,
				"rows_count": len(session.Rows),
				"trials":     len(session.Trials),
			},
		}, nil
	}

	if s.dbRepo == nil {
		return nil, errors.New("database repository is not configured")
	}
	if err := s.dbRepo.SaveLabSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save to database: %w", err)
	}

	session.Status = models.StatusSaved
	if err := s.cacheRepo.SaveSession(ctx, decision.SessionID, session); err != nil {
		log.Printf("[WARN] Failed to update session status in cache for %s: %v", decision.SessionID, err)
	}

	verdict := audit.RestoreLedger(s.prof.LedgerLimit, session.Trials, session.TrialCounter).Verdict()

	return &models.DecisionResponse{
		Status:  models.StatusSaved,
		Message: "Data successfully saved to database",
		Data: map[string]interface{}{
			"session_id": session.SessionID,
			"rows_count": len(session.Rows),
			"cleaned":    session.Cleaned,
			"verdict":    verdict.Status,
			"created_at": session.CreatedAt,
			"saved_at":   s.now(),
		},
	}, nil
}

// Stats состояние хранилищ для /debug/stats
func (s *LabService) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"cache": s.cacheRepo.GetStats(),
	}
	if s.dbRepo != nil {
		stats["database"] = s.dbRepo.GetStats()
	}
	return stats
}

func (s *LabService) fallbackParams() reconstruct.FallbackParams {
	return reconstruct.FallbackParams{
		ArtifactThreshold: s.prof.ArtifactThreshold,
		Floor:             s.prof.FallbackFloor,
		Jitter:            s.prof.FallbackJitter,
	}
}

func sessionResponse(session *models.LabSession, ledger *audit.Ledger) *models.SessionResponse {
	return &models.SessionResponse{
		SessionID: session.SessionID,
		Status:    session.Status,
		FileName:  session.FileName,
		Cleaned:   session.Cleaned,
		Rows:      session.Rows,
		Summary:   session.Summary,
		Ranking:   ledger.Rank(),
		Verdict:   ledger.Verdict(),
	}
}
