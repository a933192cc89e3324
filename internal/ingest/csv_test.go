package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "User_ID,Age,Gen,BSR,Win,EDA_Mean,EDA_Std,SCL_Tonic,SCR_Peaks,SCR_Amp,Slope_Max,HF_Energy,Entropy,Motion\n"

func TestParse_ExactValueRoundTrip(t *testing.T) {
	input := header + "S1,30,M,0.5,1,2.345,0.1,2.2,3,0.4,0.05,1.5,1.0,0\n"

	rows, summary, err := Parse(strings.NewReader(input), 2.0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "S1", r.UserID)
	assert.Equal(t, "30", r.Age)
	assert.Equal(t, "M", r.Gen)
	assert.Equal(t, 2.345, r.EDAMean)
	assert.Equal(t, 1, r.Motion)
	assert.Equal(t, 0, r.ReportedMotion)
	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, 1, summary.Artifacts)
}

func TestParse_MotionFollowsThresholdOnly(t *testing.T) {
	input := header +
		"S1,30,M,0.5,1,1.999,0,0,0,0,0,0,0,1\n" +
		"S1,30,M,0.5,2,2.0,0,0,0,0,0,0,0,1\n" +
		"S1,30,M,0.5,3,2.001,0,0,0,0,0,0,0,0\n"

	rows, _, err := Parse(strings.NewReader(input), 2.0)
	require.NoError(t, err)

	got := []int{rows[0].Motion, rows[1].Motion, rows[2].Motion}
	assert.Equal(t, []int{0, 0, 1}, got)
}

func TestParse_CoercesBadFieldsAndContinues(t *testing.T) {
	input := header +
		"S1,30,M,0.5,1,abc,NaN,,x,0.4,0.05,1.5,1.0,zz\n" +
		"----------------------------------------\n" +
		"\n" +
		"S2,41,F,0.7,2,0.9\n" +
		"S3,22,F,0.7,3,1.1,0.2,1.0,1,0.3,0.01,0.9,0.5,0\n"

	rows, summary, err := Parse(strings.NewReader(input), 2.0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 0.0, rows[0].EDAMean)
	assert.Equal(t, 0.0, rows[0].EDAStd)
	assert.Equal(t, 0, rows[0].ReportedMotion)

	assert.Equal(t, "S2", rows[1].UserID)
	assert.Equal(t, 0.9, rows[1].EDAMean)
	assert.Equal(t, 0.0, rows[1].Entropy)

	assert.Equal(t, 1.1, rows[2].EDAMean)
	assert.InDelta(t, (0+0.9+1.1)/3, summary.MeanEDA, 1e-12)
}

func TestParse_NoHeader(t *testing.T) {
	rows, _, err := Parse(strings.NewReader("S1,30,M,0.5,1,0.8,0,0,0,0,0,0,0,0\n"), 2.0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestParse_Empty(t *testing.T) {
	_, _, err := Parse(strings.NewReader(header), 2.0)
	assert.True(t, errors.Is(err, ErrEmptyFile))
}

func TestApply(t *testing.T) {
	rows := []Row{
		{UserID: "S1", EDAMean: 0.80, Motion: 1},
		{UserID: "S1", EDAMean: 5.00, Motion: 1},
	}

	cleaned, err := Apply(rows, []float64{0.805, 0.85}, 0.01)
	require.NoError(t, err)

	assert.Equal(t, 0.805, cleaned[0].SCLTonic)
	assert.Equal(t, 0, cleaned[0].Motion)
	assert.Equal(t, 0.85, cleaned[1].SCLTonic)
	assert.Equal(t, 1, cleaned[1].Motion)

	assert.Equal(t, 0.0, rows[0].SCLTonic, "input rows must stay untouched")
}

func TestApply_LengthMismatch(t *testing.T) {
	_, err := Apply([]Row{{}}, []float64{1, 2}, 0.01)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestWriteThenParse(t *testing.T) {
	rows := []Row{
		{UserID: "S1", Age: "30", Gen: "M", BSR: "0.5", Win: "1", EDAMean: 2.345, SCLTonic: 0.9, Motion: 1},
		{UserID: "S1", Age: "30", Gen: "M", BSR: "0.5", Win: "2", EDAMean: 0.81, SCLTonic: 0.81},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), "User_ID,Age,Gen"))

	parsed, _, err := Parse(&buf, 2.0)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, 2.345, parsed[0].EDAMean)
	assert.Equal(t, 0.9, parsed[0].SCLTonic)
	assert.Equal(t, 1, parsed[0].ReportedMotion)
	assert.Equal(t, []float64{2.345, 0.81}, EDAMeans(parsed))
}
