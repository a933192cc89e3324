package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntropyIndex_SpikeRaisesEntropy(t *testing.T) {
	constant := make([]float64, 30)
	spiked := make([]float64, 30)
	for i := range constant {
		constant[i] = 0.8
		spiked[i] = 0.8
	}
	spiked[15] = 9.99

	flat := EntropyIndex(constant, 9.2)
	noisy := EntropyIndex(spiked, 9.2)

	assert.InDelta(t, 0.0, flat, 1e-12)
	assert.Greater(t, noisy, flat)
}

func TestEntropyIndex_UsesLastThirtySamples(t *testing.T) {
	values := make([]float64, 0, 60)
	for i := 0; i < 30; i++ {
		values = append(values, 100*float64(i%2))
	}
	for i := 0; i < 30; i++ {
		values = append(values, 1.0)
	}

	assert.InDelta(t, 0.0, EntropyIndex(values, 9.2), 1e-12)
	assert.Equal(t, 0.0, EntropyIndex(nil, 9.2))
}

func TestAggregates(t *testing.T) {
	values := []float64{1, 3, 2, 6}

	assert.InDelta(t, 3.0, Mean(values), 1e-12)
	assert.InDelta(t, 3.5, Variance(values), 1e-12)
	assert.InDelta(t, math.Sqrt(3.5), StdDev(values), 1e-12)
	assert.InDelta(t, 5.0, PeakToPeak(values), 1e-12)
	assert.InDelta(t, 4.0, SlopeMax(values), 1e-12)
	assert.Equal(t, 1, ArtifactCount(values, 3.0))
	assert.Equal(t, 0.0, SlopeMax([]float64{2}))
}

func TestComputeDiagnostics_IgnoresContactLoss(t *testing.T) {
	raw := []float64{0.05, 1.0, 0.1, 3.0, 2.0}

	d, err := ComputeDiagnostics(raw, 9.2)
	require.NoError(t, err)

	assert.Equal(t, 3.0, d.Peak)
	assert.Equal(t, 1.0, d.Floor)
	assert.InDelta(t, 2.0, d.Mean, 1e-12)
	assert.Equal(t, 3, d.Samples)
	assert.InDelta(t, EntropyIndex(raw, 9.2), d.Entropy, 1e-12)
}

func TestComputeDiagnostics_Empty(t *testing.T) {
	_, err := ComputeDiagnostics([]float64{0, 0.1}, 9.2)
	assert.True(t, errors.Is(err, ErrEmptyWindow))
}

func TestBuildRow(t *testing.T) {
	buffer := []float64{0.8, 0.8, 2.5, 0.8}
	at := time.Date(2026, 3, 9, 14, 5, 6, 0, time.UTC)

	row := BuildRow(RowInput{
		UserID:            "S1",
		Age:               "30",
		Gen:               "M",
		Current:           2.5,
		Buffer:            buffer,
		Entropy:           2.0,
		WindowSeconds:     5,
		ArtifactThreshold: 2.0,
		HFEnergyScale:     1.5,
		At:                at,
	})

	assert.Equal(t, "S1", row.UserID)
	assert.InDelta(t, 0.4, row.BSR, 1e-12)
	assert.Equal(t, 5, row.Win)
	assert.InDelta(t, 1.225, row.EDAMean, 1e-12)
	assert.Equal(t, row.EDAMean, row.SCLTonic)
	assert.Equal(t, 1, row.SCRPeaks)
	assert.InDelta(t, 1.7, row.SCRAmp, 1e-12)
	assert.InDelta(t, 1.7, row.SlopeMax, 1e-12)
	assert.InDelta(t, 3.0, row.HFEnergy, 1e-12)
	assert.Equal(t, 1.0, row.Motion)
	assert.Equal(t, "09/03/2026, 14:05:06", row.Timestamp)
}

func TestBuildRow_ZeroReadingUsesFloorForBSR(t *testing.T) {
	row := BuildRow(RowInput{Current: 0, Buffer: []float64{0.8}, ArtifactThreshold: 2.0})

	assert.InDelta(t, 10.0, row.BSR, 1e-12)
	assert.Equal(t, 0.0, row.Motion)
}
