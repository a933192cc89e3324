package profile

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix префикс переменных окружения, переопределяющих профиль (EDA_POLLING_RATE и т.п.)
const EnvPrefix = "EDA"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())
	return v
}

func setDefaults(v *viper.Viper, p *Profile) {
	for key, value := range settings(p) {
		v.SetDefault(key, value)
	}
}

// settings раскладывает профиль в плоские ключи viper; интервалы пишутся строками ("150ms")
func settings(p *Profile) map[string]any {
	return map[string]any{
		"uplink_endpoint":        p.UplinkEndpoint,
		"polling_rate":           p.PollingRate.String(),
		"simulated_polling_rate": p.SimulatedPollingRate.String(),
		"station_node":           p.StationNode,

		"graph_buffer_limit":     p.GraphBufferLimit,
		"ml_window":              p.MLWindow,
		"matrix_update_interval": p.MatrixUpdateInterval.String(),
		"matrix_table_limit":     p.MatrixTableLimit,
		"audit_report_limit":     p.AuditReportLimit,
		"trail_limit":            p.TrailLimit,
		"ledger_limit":           p.LedgerLimit,

		"artifact_threshold": p.ArtifactThreshold,
		"divergence_delta":   p.DivergenceDelta,
		"base_baseline":      p.BaseBaseline,
		"fallback_floor":     p.FallbackFloor,
		"fallback_jitter":    p.FallbackJitter,
		"entropy_scale":      p.EntropyScale,
		"hf_energy_scale":    p.HFEnergyScale,

		"verdict_thresholds.critical":         p.VerdictThresholds.Critical,
		"verdict_thresholds.high":             p.VerdictThresholds.High,
		"verdict_thresholds.elevated":         p.VerdictThresholds.Elevated,
		"verdict_thresholds.nominal":          p.VerdictThresholds.Nominal,
		"verdict_thresholds.entropy_volatile": p.VerdictThresholds.EntropyVolatile,

		"ml_backend":    p.MLBackend,
		"ml_mode":       p.MLMode,
		"ml_techniques": append([]string(nil), p.MLTechniques...),

		"neural_smoothing": p.NeuralSmoothing,
		"security_level":   p.SecurityLevel,
		"theme":            p.Theme,
	}
}

func decode(v *viper.Viper) (*Profile, error) {
	p := &Profile{}
	if err := v.Unmarshal(p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load читает профиль из YAML-файла. Пустой путь означает профиль по умолчанию
// с учетом переменных окружения EDA_*.
func Load(path string) (*Profile, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
		}
	}

	return decode(v)
}

// Save записывает профиль в YAML-файл
func Save(p *Profile, path string) error {
	if err := p.Validate(); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range settings(p) {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write profile %s: %w", path, err)
	}
	return nil
}

// Watcher держит актуальную копию профиля и перечитывает файл при изменении
type Watcher struct {
	v        *viper.Viper
	mu       sync.RWMutex
	current  *Profile
	onChange func(*Profile)
}

// Watch загружает профиль и подписывается на изменения файла.
// Невалидные правки логируются и игнорируются, действующий профиль сохраняется.
func Watch(path string, onChange func(*Profile)) (*Watcher, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	p, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{v: v, current: p, onChange: onChange}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		updated, err := decode(v)
		if err != nil {
			log.Printf("[WARN] Profile reload rejected (%s): %v", e.Name, err)
			return
		}

		w.mu.Lock()
		w.current = updated
		w.mu.Unlock()

		log.Printf("[INFO] Profile reloaded from %s", e.Name)
		if w.onChange != nil {
			w.onChange(updated.Clone())
		}
	})
	v.WatchConfig()

	return w, nil
}

// Current возвращает копию действующего профиля
func (w *Watcher) Current() *Profile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current.Clone()
}
