package reconstruct

import (
	"errors"

	"github.com/Krimson/eda-forensics/internal/audit"
)

// Technique идентификатор алгоритма бэкенда
type Technique string

const (
	TechCUL       Technique = "cul"
	TechGMM       Technique = "gmm"
	TechKMeans    Technique = "kmeans"
	TechDBSCAN    Technique = "dbscan"
	TechIsoForest Technique = "iso_forest"
	TechLOF       Technique = "lof"
	TechPCA       Technique = "pca"
)

// AllTechniques в порядке перебора бэкенда
var AllTechniques = []Technique{TechCUL, TechGMM, TechKMeans, TechDBSCAN, TechIsoForest, TechLOF, TechPCA}

// MaxBenchmarkResults число непустых комбинаций семи алгоритмов
const MaxBenchmarkResults = audit.MaxBenchmarkTrials

var (
	// ErrBackendUnavailable бэкенд не ответил или ответил не 2xx
	ErrBackendUnavailable = errors.New("ml backend unavailable")
	// ErrSchemaMismatch ответ бэкенда не соответствует ожидаемой схеме
	ErrSchemaMismatch = errors.New("ml backend response schema mismatch")
	// ErrUnknownTechnique запрошен неизвестный алгоритм
	ErrUnknownTechnique = errors.New("unknown technique")
	// ErrQueueFull очередь реконструкции переполнена
	ErrQueueFull = errors.New("reconstruction queue full")
	// ErrQueueStopped очередь остановлена
	ErrQueueStopped = errors.New("reconstruction queue stopped")
)

// ValidTechnique проверяет идентификатор алгоритма
func ValidTechnique(id string) bool {
	for _, t := range AllTechniques {
		if string(t) == id {
			return true
		}
	}
	return false
}

// AnalyzeRequest тело POST /analyze
type AnalyzeRequest struct {
	RawData    []float64 `json:"raw_data"`
	Mode       string    `json:"mode"`
	Techniques []string  `json:"techniques"`
}

// AnalyzeResponse ответ POST /analyze
type AnalyzeResponse struct {
	RefinedData []float64      `json:"refined_data" validate:"required,min=1"`
	Metrics     *audit.Metrics `json:"metrics" validate:"required"`
}

// BenchmarkRequest тело POST /benchmark
type BenchmarkRequest struct {
	RawData []float64 `json:"raw_data"`
}

// BenchmarkEntry один результат полного перебора
type BenchmarkEntry struct {
	Mode       string         `json:"mode" validate:"required,oneof=solo hybrid"`
	Techs      []string       `json:"techs" validate:"required,min=1,max=7,dive,required"`
	Metrics    *audit.Metrics `json:"metrics" validate:"required"`
	TotalScore float64        `json:"total_score"`
}

// BenchmarkResponse ответ POST /benchmark, уже отсортированный бэкендом
type BenchmarkResponse struct {
	Results []BenchmarkEntry `json:"results" validate:"required,max=127,dive"`
}

// Result итог одной реконструкции. Degraded означает локальный резервный расчет.
type Result struct {
	Refined    float64       `json:"refined"`
	Series     []float64     `json:"series,omitempty"`
	Metrics    audit.Metrics `json:"metrics"`
	Mode       audit.Mode    `json:"mode"`
	Techniques []string      `json:"techs"`
	Degraded   bool          `json:"degraded"`
	Trial      *audit.Trial  `json:"trial,omitempty"`
}
