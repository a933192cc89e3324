package audit

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// VerdictStatus итог журнала испытаний
type VerdictStatus string

const (
	VerdictAwaiting  VerdictStatus = "AWAITING"
	VerdictVerified  VerdictStatus = "VERIFIED"
	VerdictSyncError VerdictStatus = "SYNCHRONIZATION_ERROR"
)

// LedgerVerdict вывод аудитора по текущему журналу
type LedgerVerdict struct {
	Status  VerdictStatus `json:"status" yaml:"status"`
	Message string        `json:"message" yaml:"message"`
	Best    *Trial        `json:"best,omitempty" yaml:"best,omitempty"`
}

// Ledger журнал испытаний: только добавление и ранжирование.
// Хранит не более limit последних обычных записей в порядке добавления;
// испытания полного перебора под это ограничение не попадают.
type Ledger struct {
	mu      sync.RWMutex
	trials  []Trial
	limit   int
	counter int
}

// NewLedger создает журнал с ограничением на число записей
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = 50
	}
	return &Ledger{
		trials: make([]Trial, 0, limit),
		limit:  limit,
	}
}

// RestoreLedger восстанавливает журнал из сохраненных записей.
// Нумерация новых испытаний продолжается с counter.
func RestoreLedger(limit int, trials []Trial, counter int) *Ledger {
	l := NewLedger(limit)
	l.trials = append(l.trials, trials...)
	l.evictLocked()
	if counter < len(l.trials) {
		counter = len(l.trials)
	}
	l.counter = counter
	return l
}

// Counter номер последнего выданного испытания
func (l *Ledger) Counter() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counter
}

// Record добавляет испытание. Пустой ID заменяется порядковым номером.
func (l *Ledger) Record(trial Trial) Trial {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counter++
	if trial.ID == "" {
		trial.ID = strconv.Itoa(l.counter)
	}

	l.trials = append(l.trials, trial)
	l.evictLocked()

	log.Printf("[LEDGER] Trial #%s recorded: mode=%s techs=%s score=%.2f failed=%v",
		trial.ID, trial.Mode, strings.Join(trial.Techniques, "+"), trial.Score(), trial.Failed)

	return trial
}

// MaxBenchmarkTrials число комбинаций полного перебора (2^7 - 1)
const MaxBenchmarkTrials = 127

// ReplaceAll заменяет журнал целиком результатами полного перебора.
// Ограничение limit к перебору не применяется, его граница MaxBenchmarkTrials.
// Последующие Record дописываются к перебору, не вытесняя его.
func (l *Ledger) ReplaceAll(trials []Trial) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(trials) > MaxBenchmarkTrials {
		trials = trials[:MaxBenchmarkTrials]
	}

	l.trials = make([]Trial, 0, len(trials))
	for _, t := range trials {
		t.Timestamp = BenchmarkTimestamp
		l.trials = append(l.trials, t)
	}
	l.counter = len(l.trials)

	log.Printf("[LEDGER] Ledger replaced by %d benchmark trials", len(l.trials))
}

// evictLocked убирает самые старые обычные записи сверх limit
func (l *Ledger) evictLocked() {
	incremental := 0
	for _, t := range l.trials {
		if !t.Benchmark() {
			incremental++
		}
	}

	excess := incremental - l.limit
	if excess <= 0 {
		return
	}

	kept := make([]Trial, 0, len(l.trials)-excess)
	for _, t := range l.trials {
		if excess > 0 && !t.Benchmark() {
			excess--
			continue
		}
		kept = append(kept, t)
	}
	l.trials = kept
}

// Trials возвращает записи в порядке добавления
func (l *Ledger) Trials() []Trial {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]Trial(nil), l.trials...)
}

// Recent возвращает не более n последних записей, новые первыми
func (l *Ledger) Recent(n int) []Trial {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.trials) {
		n = len(l.trials)
	}

	out := make([]Trial, 0, n)
	for i := len(l.trials) - 1; i >= len(l.trials)-n; i-- {
		out = append(out, l.trials[i])
	}
	return out
}

// Rank возвращает записи по убыванию балла; при равенстве раньше идет добавленная раньше
func (l *Ledger) Rank() []Trial {
	ranked := l.Trials()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	return ranked
}

// BestTrial лучшее неупавшее испытание; false, если журнал пуст или все испытания упали
func (l *Ledger) BestTrial() (Trial, bool) {
	for _, t := range l.Rank() {
		if !t.Failed {
			return t, true
		}
	}
	return Trial{}, false
}

// Verdict вывод аудитора: ожидание данных, сбой синхронизации или лучшее испытание
func (l *Ledger) Verdict() LedgerVerdict {
	if l.Len() == 0 {
		return LedgerVerdict{
			Status:  VerdictAwaiting,
			Message: "Awaiting telemetry input. Benchmark all combinations to rank the reconstruction nodes.",
		}
	}

	best, ok := l.BestTrial()
	if !ok {
		return LedgerVerdict{
			Status:  VerdictSyncError,
			Message: "A neural synchronization error occurred. Re-initiate the bridge.",
		}
	}

	return LedgerVerdict{
		Status: VerdictVerified,
		Message: fmt.Sprintf("Verification complete. Trial #%s identified as the %s champion. Signal stability is verified.",
			best.ID, strings.ToUpper(string(best.Mode))),
		Best: &best,
	}
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trials)
}

// Reset очищает журнал и нумерацию
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trials = l.trials[:0]
	l.counter = 0
}
