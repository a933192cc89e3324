package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
)

// Backend контракт ML бэкенда, которым пользуется реконструкция
type Backend interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
	Benchmark(ctx context.Context, raw []float64) (*BenchmarkResponse, error)
}

// Reconstructor вызывает бэкенд и при любой ошибке уходит в резервный расчет.
// Каждый вызов записывает испытание в журнал, если он задан.
type Reconstructor struct {
	backend  Backend
	fallback FallbackParams
	ledger   *audit.Ledger
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewReconstructor создает реконструктор; ledger может быть nil
func NewReconstructor(backend Backend, fallback FallbackParams, ledger *audit.Ledger) *Reconstructor {
	return &Reconstructor{
		backend:  backend,
		fallback: fallback,
		ledger:   ledger,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed фиксирует генератор джиттера резервного расчета
func (r *Reconstructor) Seed(seed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	r.rng = rand.New(rand.NewSource(seed))
}

// Reconstruct отправляет окно в бэкенд и возвращает последнее реконструированное значение.
// Не возвращает ошибку: отказ бэкенда или неверная схема дают результат с Degraded = true.
func (r *Reconstructor) Reconstruct(ctx context.Context, window []float64, mode audit.Mode, techniques []string) Result {
	if len(window) == 0 {
		result := Result{Mode: mode, Techniques: techniques, Metrics: FallbackMetrics, Degraded: true}
		r.recordFailed(&result)
		return result
	}

	current := window[len(window)-1]

	resp, err := r.backend.Analyze(ctx, AnalyzeRequest{
		RawData:    window,
		Mode:       string(mode),
		Techniques: techniques,
	})
	if err != nil {
		return r.degrade(current, mode, techniques, err)
	}

	result := Result{
		Refined:    resp.RefinedData[len(resp.RefinedData)-1],
		Series:     resp.RefinedData,
		Metrics:    *resp.Metrics,
		Mode:       mode,
		Techniques: techniques,
	}

	if r.ledger != nil {
		trial := r.ledger.Record(audit.NewTrial(mode, techniques, result.Metrics, r.now()))
		result.Trial = &trial
	}

	return result
}

func (r *Reconstructor) degrade(current float64, mode audit.Mode, techniques []string, cause error) Result {
	switch {
	case errors.Is(cause, ErrSchemaMismatch):
		log.Printf("[WARN] [ML_SERVICE] Backend response rejected, using fallback: %v", cause)
	default:
		log.Printf("[WARN] [ML_SERVICE] Backend unreachable, using fallback: %v", cause)
	}

	r.rngMu.Lock()
	refined := Fallback(current, r.fallback, r.rng)
	r.rngMu.Unlock()

	result := Result{
		Refined:    refined,
		Metrics:    FallbackMetrics,
		Mode:       mode,
		Techniques: techniques,
		Degraded:   true,
	}
	r.recordFailed(&result)

	return result
}

// recordFailed пишет в журнал упавшее испытание резервного результата
func (r *Reconstructor) recordFailed(result *Result) {
	if r.ledger == nil {
		return
	}
	failed := audit.FailedTrial(result.Mode, result.Techniques, r.now())
	failed.Degraded = true
	trial := r.ledger.Record(failed)
	result.Trial = &trial
}

// Benchmark запускает полный перебор и превращает результаты в испытания B-1..B-n.
// При успехе журнал заменяется целиком; при ошибке остается нетронутым.
func (r *Reconstructor) Benchmark(ctx context.Context, raw []float64) ([]audit.Trial, error) {
	resp, err := r.backend.Benchmark(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to run benchmark: %w", err)
	}

	trials := BenchmarkTrials(resp.Results, r.now())
	if r.ledger != nil {
		r.ledger.ReplaceAll(trials)
	}

	return trials, nil
}

// BenchmarkTrials переводит ответ перебора в испытания журнала, сохраняя порядок бэкенда
func BenchmarkTrials(results []BenchmarkEntry, at time.Time) []audit.Trial {
	trials := make([]audit.Trial, 0, len(results))
	for idx, res := range results {
		metrics := audit.Metrics{}
		if res.Metrics != nil {
			metrics = *res.Metrics
		}

		trials = append(trials, audit.Trial{
			ID:         fmt.Sprintf("B-%d", idx+1),
			Mode:       audit.Mode(res.Mode),
			Techniques: append([]string(nil), res.Techs...),
			Metrics:    metrics,
			Timestamp:  audit.BenchmarkTimestamp,
			TotalScore: res.TotalScore,
			Scored:     true,
			RecordedAt: at,
		})
	}
	return trials
}
