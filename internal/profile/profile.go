package profile

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidProfile профиль не прошел проверку
var ErrInvalidProfile = errors.New("invalid profile")

// VerdictThresholds пороги клинических полос, строго по убыванию
type VerdictThresholds struct {
	Critical        float64 `mapstructure:"critical" yaml:"critical" json:"critical"`
	High            float64 `mapstructure:"high" yaml:"high" json:"high"`
	Elevated        float64 `mapstructure:"elevated" yaml:"elevated" json:"elevated"`
	Nominal         float64 `mapstructure:"nominal" yaml:"nominal" json:"nominal"`
	EntropyVolatile float64 `mapstructure:"entropy_volatile" yaml:"entropy_volatile" json:"entropy_volatile"`
}

// Profile конфигурация ядра: явный объект, который передается по указателю
// в опрос, защелку, реконструкцию, вердикт и разбор CSV
type Profile struct {
	// Uplink
	UplinkEndpoint       string        `mapstructure:"uplink_endpoint" yaml:"uplink_endpoint" json:"uplink_endpoint"`
	PollingRate          time.Duration `mapstructure:"polling_rate" yaml:"polling_rate" json:"polling_rate"`
	SimulatedPollingRate time.Duration `mapstructure:"simulated_polling_rate" yaml:"simulated_polling_rate" json:"simulated_polling_rate"`
	StationNode          string        `mapstructure:"station_node" yaml:"station_node" json:"station_node"`

	// Buffers
	GraphBufferLimit     int           `mapstructure:"graph_buffer_limit" yaml:"graph_buffer_limit" json:"graph_buffer_limit"`
	MLWindow             int           `mapstructure:"ml_window" yaml:"ml_window" json:"ml_window"`
	MatrixUpdateInterval time.Duration `mapstructure:"matrix_update_interval" yaml:"matrix_update_interval" json:"matrix_update_interval"`
	MatrixTableLimit     int           `mapstructure:"matrix_table_limit" yaml:"matrix_table_limit" json:"matrix_table_limit"`
	AuditReportLimit     int           `mapstructure:"audit_report_limit" yaml:"audit_report_limit" json:"audit_report_limit"`
	TrailLimit           int           `mapstructure:"trail_limit" yaml:"trail_limit" json:"trail_limit"`
	LedgerLimit          int           `mapstructure:"ledger_limit" yaml:"ledger_limit" json:"ledger_limit"`

	// Signal
	ArtifactThreshold float64 `mapstructure:"artifact_threshold" yaml:"artifact_threshold" json:"artifact_threshold"`
	DivergenceDelta   float64 `mapstructure:"divergence_delta" yaml:"divergence_delta" json:"divergence_delta"`
	BaseBaseline      float64 `mapstructure:"base_baseline" yaml:"base_baseline" json:"base_baseline"`
	FallbackFloor     float64 `mapstructure:"fallback_floor" yaml:"fallback_floor" json:"fallback_floor"`
	FallbackJitter    float64 `mapstructure:"fallback_jitter" yaml:"fallback_jitter" json:"fallback_jitter"`
	EntropyScale      float64 `mapstructure:"entropy_scale" yaml:"entropy_scale" json:"entropy_scale"`
	HFEnergyScale     float64 `mapstructure:"hf_energy_scale" yaml:"hf_energy_scale" json:"hf_energy_scale"`

	VerdictThresholds VerdictThresholds `mapstructure:"verdict_thresholds" yaml:"verdict_thresholds" json:"verdict_thresholds"`

	// ML backend
	MLBackend    string   `mapstructure:"ml_backend" yaml:"ml_backend" json:"ml_backend"`
	MLMode       string   `mapstructure:"ml_mode" yaml:"ml_mode" json:"ml_mode"`
	MLTechniques []string `mapstructure:"ml_techniques" yaml:"ml_techniques" json:"ml_techniques"`

	// Station settings
	NeuralSmoothing int    `mapstructure:"neural_smoothing" yaml:"neural_smoothing" json:"neural_smoothing"`
	SecurityLevel   string `mapstructure:"security_level" yaml:"security_level" json:"security_level"`
	Theme           string `mapstructure:"theme" yaml:"theme" json:"theme"`
}

// Default возвращает профиль станции по умолчанию
func Default() *Profile {
	return &Profile{
		UplinkEndpoint:       "http://localhost:8080/telemetry.json",
		PollingRate:          150 * time.Millisecond,
		SimulatedPollingRate: 100 * time.Millisecond,
		StationNode:          "IN-HYD-SMS-ALPHA-01",

		GraphBufferLimit:     120,
		MLWindow:             30,
		MatrixUpdateInterval: 5 * time.Second,
		MatrixTableLimit:     50,
		AuditReportLimit:     10,
		TrailLimit:           60,
		LedgerLimit:          50,

		ArtifactThreshold: 2.0,
		DivergenceDelta:   0.01,
		BaseBaseline:      0.8434,
		FallbackFloor:     0.8,
		FallbackJitter:    0.2,
		EntropyScale:      9.2,
		HFEnergyScale:     1.5,

		VerdictThresholds: VerdictThresholds{
			Critical:        8.0,
			High:            5.5,
			Elevated:        3.5,
			Nominal:         1.5,
			EntropyVolatile: 1.25,
		},

		MLBackend:    "http://127.0.0.1:8000",
		MLMode:       "solo",
		MLTechniques: []string{"cul"},

		NeuralSmoothing: 85,
		SecurityLevel:   "Standard",
		Theme:           "#2563eb",
	}
}

// Validate проверяет емкости, интервалы и порядок порогов
func (p *Profile) Validate() error {
	positiveInts := map[string]int{
		"graph_buffer_limit": p.GraphBufferLimit,
		"ml_window":          p.MLWindow,
		"matrix_table_limit": p.MatrixTableLimit,
		"audit_report_limit": p.AuditReportLimit,
		"trail_limit":        p.TrailLimit,
		"ledger_limit":       p.LedgerLimit,
	}
	for name, v := range positiveInts {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidProfile, name, v)
		}
	}

	positiveDurations := map[string]time.Duration{
		"polling_rate":           p.PollingRate,
		"simulated_polling_rate": p.SimulatedPollingRate,
		"matrix_update_interval": p.MatrixUpdateInterval,
	}
	for name, v := range positiveDurations {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidProfile, name, v)
		}
	}

	if p.ArtifactThreshold <= 0 {
		return fmt.Errorf("%w: artifact_threshold must be positive", ErrInvalidProfile)
	}
	if p.DivergenceDelta < 0 {
		return fmt.Errorf("%w: divergence_delta must not be negative", ErrInvalidProfile)
	}

	t := p.VerdictThresholds
	if !(t.Critical > t.High && t.High > t.Elevated && t.Elevated > t.Nominal) {
		return fmt.Errorf("%w: verdict thresholds must be strictly descending (critical %.2f, high %.2f, elevated %.2f, nominal %.2f)",
			ErrInvalidProfile, t.Critical, t.High, t.Elevated, t.Nominal)
	}

	switch p.MLMode {
	case "solo", "hybrid":
	default:
		return fmt.Errorf("%w: ml_mode must be solo or hybrid, got %q", ErrInvalidProfile, p.MLMode)
	}
	if len(p.MLTechniques) == 0 {
		return fmt.Errorf("%w: ml_techniques must not be empty", ErrInvalidProfile)
	}

	if p.NeuralSmoothing < 0 || p.NeuralSmoothing > 100 {
		return fmt.Errorf("%w: neural_smoothing must be within 0..100", ErrInvalidProfile)
	}

	return nil
}

// Clone возвращает независимую копию профиля
func (p *Profile) Clone() *Profile {
	c := *p
	c.MLTechniques = append([]string(nil), p.MLTechniques...)
	return &c
}
