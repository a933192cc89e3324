package verdict

import (
	"fmt"

	"github.com/Krimson/eda-forensics/internal/profile"
)

// Tag клиническая полоса
type Tag string

const (
	Resting  Tag = "RESTING"
	Nominal  Tag = "NOMINAL"
	Elevated Tag = "ELEVATED"
	High     Tag = "HIGH"
	Critical Tag = "CRITICAL"
)

// Severity порядковый номер полосы: RESTING = 0 ... CRITICAL = 4
func (t Tag) Severity() int {
	switch t {
	case Critical:
		return 4
	case High:
		return 3
	case Elevated:
		return 2
	case Nominal:
		return 1
	default:
		return 0
	}
}

// Stable спокойные полосы (RESTING, NOMINAL)
func (t Tag) Stable() bool {
	return t == Resting || t == Nominal
}

// Stats агрегаты, по которым выносится вердикт
type Stats struct {
	Mean    float64 `json:"mean" yaml:"mean"`
	Peak    float64 `json:"peak" yaml:"peak"`
	Entropy float64 `json:"entropy" yaml:"entropy"`
}

// Verdict производное значение, пересчитывается по запросу
type Verdict struct {
	Tag         Tag    `json:"tag" yaml:"tag"`
	Message     string `json:"message" yaml:"message"`
	Color       string `json:"color" yaml:"color"`
	Description string `json:"description" yaml:"description"`
	Profile     string `json:"profile" yaml:"profile"`
}

type band struct {
	threshold func(profile.VerdictThresholds) float64
	verdict   Verdict
}

// bands в порядке убывания; побеждает первая полоса со строгим превышением
var bands = []band{
	{
		threshold: func(t profile.VerdictThresholds) float64 { return t.Critical },
		verdict: Verdict{
			Tag:         Critical,
			Message:     "ACUTE OVERLOAD",
			Color:       "text-red-600",
			Description: "Subject exhibiting peak sympathetic arousal intensity. Fight-or-flight dominance is maximum.",
			Profile:     "Sympathetic Hyper-Dominance",
		},
	},
	{
		threshold: func(t profile.VerdictThresholds) float64 { return t.High },
		verdict: Verdict{
			Tag:         High,
			Message:     "SIGNIFICANT STRESS",
			Color:       "text-red-500",
			Description: "Sustained sympathetic activation detected. Body is in active distress mode.",
			Profile:     "Elevated Sympathetic Tone",
		},
	},
	{
		threshold: func(t profile.VerdictThresholds) float64 { return t.Elevated },
		verdict: Verdict{
			Tag:         Elevated,
			Message:     "MODERATE AROUSAL",
			Color:       "text-orange-500",
			Description: "Subject is alert and engaged. Some emotional or cognitive oscillation present.",
			Profile:     "Physiological Engagement",
		},
	},
	{
		threshold: func(t profile.VerdictThresholds) float64 { return t.Nominal },
		verdict: Verdict{
			Tag:         Nominal,
			Message:     "STABLE BASELINE",
			Color:       "text-blue-500",
			Description: "Autonomic tone is within normal limits. Body is calm and functioning normally.",
			Profile:     "Homeostatic Equilibrium",
		},
	},
}

var resting = Verdict{
	Tag:         Resting,
	Message:     "RECOVERY STATE",
	Color:       "text-emerald-500",
	Description: "Subject is in deep physical rest. Parasympathetic tone is verified as dominant.",
	Profile:     "Parasympathetic Dominance",
}

// Classify возвращает ровно одну полосу по среднему. Пик и энтропия
// в полосу не входят и используются только в Findings.
func Classify(s Stats, t profile.VerdictThresholds) Verdict {
	for _, b := range bands {
		if s.Mean > b.threshold(t) {
			return b.verdict
		}
	}
	return resting
}

// Findings построчные выводы досье: тоническая адаптация, фазическая реактивность, энтропия
func Findings(s Stats) []string {
	tonic := "Nominal Baseline Equilibrium"
	if s.Mean > 3.0 {
		tonic = "Elevated Sympathetic Tone"
	}

	phasic := "Stable Autonomic Response"
	if s.Peak > 5.0 {
		phasic = "Hyper-Reactive Spikes Detected"
	}

	entropy := "Homogeneous Signal Flow"
	if s.Entropy > 1.2 {
		entropy = "Significant Volatility"
	}

	return []string{
		fmt.Sprintf("1. TONIC ADAPTATION: %s (Mean: %.3f μS)", tonic, s.Mean),
		fmt.Sprintf("2. PHASIC REACTIVITY: %s (Peak: %.3f μS)", phasic, s.Peak),
		fmt.Sprintf("3. SIGNAL ENTROPY: %s (Index: %.2f)", entropy, s.Entropy),
	}
}

// Summary итоговая строка оценки
func Summary(v Verdict) string {
	return fmt.Sprintf("OVERALL ASSESSMENT: %s [%s]", v.Message, v.Profile)
}

// Volatile энтропия выше порога нестабильного сигнала
func Volatile(s Stats, t profile.VerdictThresholds) bool {
	return s.Entropy > t.EntropyVolatile
}
