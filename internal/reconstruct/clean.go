package reconstruct

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
)

// CleanRows реконструирует колонку EDA_Mean файла признаков и пересчитывает
// SCL_Tonic и Motion. Испытание пишется в журнал в обоих исходах; при отказе
// бэкенда строки не меняются, испытание помечено Failed.
func (r *Reconstructor) CleanRows(ctx context.Context, rows []ingest.Row, mode audit.Mode, techniques []string, delta float64) ([]ingest.Row, audit.Trial, error) {
	resp, err := r.backend.Analyze(ctx, AnalyzeRequest{
		RawData:    ingest.EDAMeans(rows),
		Mode:       string(mode),
		Techniques: techniques,
	})

	var cleaned []ingest.Row
	if err == nil {
		cleaned, err = ingest.Apply(rows, resp.RefinedData, delta)
	}

	if err != nil {
		log.Printf("[WARN] [ML_SERVICE] Clean failed: mode=%s techs=%s: %v", mode, strings.Join(techniques, "+"), err)
		trial := r.record(audit.FailedTrial(mode, techniques, r.now()))
		return nil, trial, fmt.Errorf("failed to clean rows: %w", err)
	}

	trial := r.record(audit.NewTrial(mode, techniques, *resp.Metrics, r.now()))
	return cleaned, trial, nil
}

func (r *Reconstructor) record(trial audit.Trial) audit.Trial {
	if r.ledger == nil {
		return trial
	}
	return r.ledger.Record(trial)
}
