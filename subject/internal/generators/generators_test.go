package generators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/subject/internal/config"
	"github.com/Krimson/eda-forensics/subject/internal/csvreader"
	"github.com/Krimson/eda-forensics/subject/internal/models"
)

var (
	calm  = models.Motion{Z: 1.0}
	shake = models.Motion{X: 1.0, Y: 1.0, Z: 1.0}
)

func newGenerator(t *testing.T) EDAGenerator {
	t.Helper()
	g, err := NewEDAGenerator(config.DefaultKernel, 42)
	require.NoError(t, err)
	return g
}

func TestEDAGenerator_CalmStaysNearTonic(t *testing.T) {
	g := newGenerator(t)

	for i := 0; i < 500; i++ {
		r, err := g.Next(calm)
		require.NoError(t, err)
		assert.InDelta(t, 0.845, r.EDA, 0.05)
		assert.False(t, r.IsArtifact)
		assert.False(t, r.Shake)
	}
	assert.Equal(t, 500, g.GetStats().TotalValuesGenerated)
}

func TestEDAGenerator_ShakeSpikesAndRecovers(t *testing.T) {
	g := newGenerator(t)

	r, err := g.Next(shake)
	require.NoError(t, err)
	assert.True(t, r.Shake)
	assert.True(t, r.IsArtifact)
	// 0.845 + 4.5 * 0.88 с шумом не более 0.175
	assert.InDelta(t, 4.805, r.EDA, 0.175)

	var last models.Reading
	for i := 0; i < 100; i++ {
		last, err = g.Next(calm)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.845, last.EDA, 0.05)
	assert.False(t, last.IsArtifact)
}

func TestEDAGenerator_CeilingAndClamp(t *testing.T) {
	g := newGenerator(t)

	for i := 0; i < 50; i++ {
		r, err := g.Next(shake)
		require.NoError(t, err)
		assert.LessOrEqual(t, r.EDA, 9.95)
		assert.LessOrEqual(t, r.Raw, 9.9+4.5+0.175)
	}
	stats := g.GetStats()
	assert.Equal(t, 50, stats.ShakeCount)
	assert.Equal(t, 50, stats.ArtifactCount)
}

func TestEDAGenerator_FloorsLowState(t *testing.T) {
	k := config.DefaultKernel
	k.TonicTarget = 0.05
	g, err := NewEDAGenerator(k, 1)
	require.NoError(t, err)

	impl := g.(*edaGenerator)
	_, err = g.Next(calm)
	require.NoError(t, err)
	assert.Equal(t, 0.102, impl.state)

	g.Reset()
	assert.Equal(t, 0.05, impl.state)
	assert.Zero(t, g.GetStats().TotalValuesGenerated)
}

func TestNewEDAGenerator_RejectsBadKernel(t *testing.T) {
	k := config.DefaultKernel
	k.RecoveryAlpha = 0
	_, err := NewEDAGenerator(k, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSimulatedMotion_ShakeCadence(t *testing.T) {
	m := NewSimulatedMotion(3, 4)

	for i := 1; i <= 12; i++ {
		force := m.NextMotion().Force()
		if i%4 == 0 {
			assert.Greater(t, force, config.DefaultKernel.KineticLimit, "sample %d", i)
		} else {
			assert.Less(t, force, config.DefaultKernel.KineticLimit, "sample %d", i)
		}
	}
}

func TestReplayGenerator(t *testing.T) {
	g := NewReplayGenerator([]csvreader.DataPoint{{TimeSec: 0, Value: 0.9}, {TimeSec: 1, Value: 12.0}, {TimeSec: 2, Value: 2.5}}, config.DefaultKernel)

	r, err := g.Next(calm)
	require.NoError(t, err)
	assert.Equal(t, 0.9, r.EDA)
	assert.False(t, r.IsArtifact)

	r, err = g.Next(calm)
	require.NoError(t, err)
	assert.Equal(t, 9.95, r.EDA)
	assert.True(t, r.IsArtifact)

	_, err = g.Next(calm)
	require.NoError(t, err)

	_, err = g.Next(calm)
	assert.True(t, errors.Is(err, ErrReplayFinished))

	g.Reset()
	r, err = g.Next(calm)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Seq)
}
