package verdict

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/internal/profile"
)

var thresholds = profile.Default().VerdictThresholds

func TestClassify_Bands(t *testing.T) {
	cases := []struct {
		mean float64
		want Tag
	}{
		{mean: 9.0, want: Critical},
		{mean: 8.0, want: High},
		{mean: 5.51, want: High},
		{mean: 5.5, want: Elevated},
		{mean: 3.6, want: Elevated},
		{mean: 3.5, want: Nominal},
		{mean: 1.6, want: Nominal},
		{mean: 1.5, want: Resting},
		{mean: 0, want: Resting},
		{mean: -4, want: Resting},
	}

	for _, tc := range cases {
		got := Classify(Stats{Mean: tc.mean}, thresholds)
		assert.Equal(t, tc.want, got.Tag, "mean=%v", tc.mean)
	}
}

func TestClassify_MonotonicInMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	means := make([]float64, 500)
	for i := range means {
		means[i] = rng.Float64()*12 - 1
	}
	sort.Float64s(means)

	for _, fixed := range []Stats{{Peak: 0, Entropy: 0}, {Peak: 9.9, Entropy: 4}} {
		prev := -1
		for _, m := range means {
			s := fixed
			s.Mean = m
			sev := Classify(s, thresholds).Tag.Severity()
			require.GreaterOrEqual(t, sev, prev, "severity dropped at mean=%v", m)
			prev = sev
		}
	}
}

func TestClassify_IgnoresPeakAndEntropy(t *testing.T) {
	a := Classify(Stats{Mean: 2.0, Peak: 0, Entropy: 0}, thresholds)
	b := Classify(Stats{Mean: 2.0, Peak: 9.9, Entropy: 10}, thresholds)
	assert.Equal(t, a, b)
}

func TestClassify_CarriesDescriptions(t *testing.T) {
	v := Classify(Stats{Mean: 10}, thresholds)
	assert.Equal(t, "ACUTE OVERLOAD", v.Message)
	assert.Equal(t, "Sympathetic Hyper-Dominance", v.Profile)
	assert.False(t, v.Tag.Stable())

	r := Classify(Stats{Mean: 1}, thresholds)
	assert.Equal(t, "RECOVERY STATE", r.Message)
	assert.True(t, r.Tag.Stable())
	assert.Equal(t, "OVERALL ASSESSMENT: RECOVERY STATE [Parasympathetic Dominance]", Summary(r))
}

func TestFindings(t *testing.T) {
	lines := Findings(Stats{Mean: 3.5, Peak: 4.0, Entropy: 1.3})
	require.Len(t, lines, 3)
	assert.Equal(t, "1. TONIC ADAPTATION: Elevated Sympathetic Tone (Mean: 3.500 μS)", lines[0])
	assert.Equal(t, "2. PHASIC REACTIVITY: Stable Autonomic Response (Peak: 4.000 μS)", lines[1])
	assert.Equal(t, "3. SIGNAL ENTROPY: Significant Volatility (Index: 1.30)", lines[2])
}

func TestVolatile(t *testing.T) {
	assert.True(t, Volatile(Stats{Entropy: 1.3}, thresholds))
	assert.False(t, Volatile(Stats{Entropy: 1.25}, thresholds))
}
