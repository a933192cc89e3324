package audit

import (
	"time"
)

// Mode режим реконструкции
type Mode string

const (
	ModeSolo   Mode = "solo"
	ModeHybrid Mode = "hybrid"
)

// BenchmarkTimestamp метка времени у испытаний, пришедших из полного перебора
const BenchmarkTimestamp = "BENCHMARK"

// Metrics тройка качества реконструкции, рассчитанная бэкендом
type Metrics struct {
	SmoothnessScore  float64 `json:"smoothness_score" yaml:"smoothness_score" validate:"gte=0,lte=100"`
	NoiseSuppression float64 `json:"noise_suppression" yaml:"noise_suppression" validate:"gte=0"`
	StabilityIndex   float64 `json:"stability_index" yaml:"stability_index" validate:"gte=0"`
}

// ComputeScore итоговый балл испытания: stability * 10 + smoothness
func ComputeScore(m Metrics) float64 {
	return m.StabilityIndex*10 + m.SmoothnessScore
}

// Trial одна запись журнала испытаний. После записи не изменяется.
type Trial struct {
	ID         string    `json:"id" yaml:"id"`
	Mode       Mode      `json:"mode" yaml:"mode"`
	Techniques []string  `json:"techs" yaml:"techs"`
	Metrics    Metrics   `json:"metrics" yaml:"metrics"`
	Timestamp  string    `json:"timestamp" yaml:"timestamp"`
	TotalScore float64   `json:"total_score,omitempty" yaml:"total_score,omitempty"`
	Scored     bool      `json:"scored,omitempty" yaml:"scored,omitempty"`
	Failed     bool      `json:"error,omitempty" yaml:"error,omitempty"`
	Degraded   bool      `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
}

// Score балл для ранжирования. Балл бэкенда (в том числе нулевой) имеет приоритет,
// без него балл считается из метрик.
func (t Trial) Score() float64 {
	if t.Scored || t.Benchmark() {
		return t.TotalScore
	}
	return ComputeScore(t.Metrics)
}

// Benchmark испытание пришло из полного перебора
func (t Trial) Benchmark() bool {
	return t.Timestamp == BenchmarkTimestamp
}

// FailedTrial испытание, завершившееся ошибкой бэкенда: нулевые метрики, Failed = true
func FailedTrial(mode Mode, techniques []string, at time.Time) Trial {
	return Trial{
		Mode:       mode,
		Techniques: append([]string(nil), techniques...),
		Timestamp:  at.Format("15:04:05"),
		Failed:     true,
		RecordedAt: at,
	}
}

// NewTrial успешное испытание одной реконструкции
func NewTrial(mode Mode, techniques []string, metrics Metrics, at time.Time) Trial {
	return Trial{
		Mode:       mode,
		Techniques: append([]string(nil), techniques...),
		Metrics:    metrics,
		Timestamp:  at.Format("15:04:05"),
		RecordedAt: at,
	}
}
