package reconstruct

import (
	"math/rand"

	"github.com/Krimson/eda-forensics/internal/audit"
)

// FallbackMetrics фиксированные метрики локального резервного расчета
var FallbackMetrics = audit.Metrics{
	SmoothnessScore:  50,
	NoiseSuppression: 0,
	StabilityIndex:   5,
}

// FallbackParams параметры резервной реконструкции
type FallbackParams struct {
	ArtifactThreshold float64
	Floor             float64
	Jitter            float64
}

// Fallback пропускает значения ниже порога артефакта без изменений,
// остальные заменяет значением около тонической базы: floor + rand * jitter
func Fallback(value float64, p FallbackParams, rng *rand.Rand) float64 {
	if value < p.ArtifactThreshold {
		return value
	}
	return p.Floor + rng.Float64()*p.Jitter
}
