package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/forge/stubs"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

const featureCSV = "User_ID,Age,Gen,BSR,Win,EDA_Mean,EDA_Std,SCL_Tonic,SCR_Peaks,SCR_Amp,Slope_Max,HF_Energy,Entropy,Motion\n" +
	"S1,30,M,1.2,1,0.81,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,2,0.82,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,3,0.80,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,4,4.50,0.90,0.8,1,3.70,1.20,2.1,1.4,1\n" +
	"S1,30,M,1.2,5,0.81,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n"

func writeFeatures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.csv")
	require.NoError(t, os.WriteFile(path, []byte(featureCSV), 0o644))
	return path
}

func newLab(t *testing.T) (*stubs.LabStub, string) {
	t.Helper()
	lab := stubs.NewLabStub()
	srv := httptest.NewServer(lab)
	t.Cleanup(srv.Close)
	return lab, srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := New()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestIngest_ArchivesAndBrowses(t *testing.T) {
	csvPath := writeFeatures(t)
	db := filepath.Join(t.TempDir(), "eda.db")

	out, err := run(t, "ingest", csvPath, "--archive", db)
	require.NoError(t, err)
	assert.Contains(t, out, "rows:      5")
	assert.Contains(t, out, "artifacts: 1")
	assert.Contains(t, out, "archived as batch 1")

	out, err = run(t, "archive", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "features.csv")

	out, err = run(t, "archive", "show", "1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "batch 1: 5 rows")

	_, err = run(t, "archive", "show", "9", "--db", db)
	assert.Error(t, err)
}

func TestClean_WritesCleanedRows(t *testing.T) {
	_, backend := newLab(t)
	csvPath := writeFeatures(t)
	outPath := filepath.Join(t.TempDir(), "cleaned.csv")

	out, err := run(t, "--backend", backend, "clean", csvPath, "--tech", "pca", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "VERIFIED")
	assert.Contains(t, out, "cleaned rows written to")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 6)
}

func TestClean_BackendFailure(t *testing.T) {
	lab, backend := newLab(t)
	lab.SetFailing(true)
	csvPath := writeFeatures(t)
	db := filepath.Join(t.TempDir(), "eda.db")

	out, err := run(t, "--backend", backend, "clean", csvPath, "--archive", db)
	require.Error(t, err)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "SYNCHRONIZATION_ERROR")

	// строки и упавшее испытание все равно в архиве
	out, err = run(t, "archive", "show", "1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "FAILED")
}

func TestClean_RejectsUnknownTechnique(t *testing.T) {
	lab, backend := newLab(t)

	_, err := run(t, "--backend", backend, "clean", writeFeatures(t), "--tech", "quantum")
	assert.ErrorIs(t, err, reconstruct.ErrUnknownTechnique)
	assert.Zero(t, lab.Calls("/analyze"))

	_, err = run(t, "--backend", backend, "clean", writeFeatures(t), "--mode", "trio")
	assert.Error(t, err)
}

func TestBenchmark_RanksTop(t *testing.T) {
	_, backend := newLab(t)

	out, err := run(t, "--backend", backend, "benchmark", writeFeatures(t), "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "#B-1")
	assert.Contains(t, out, "VERIFIED")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// заголовок, три строки, пустая строка и вердикт
	assert.Len(t, lines, 6)
}

func TestVerdict_Bands(t *testing.T) {
	out, err := run(t, "verdict", "--mean", "6", "--peak", "7", "--entropy", "1.4")
	require.NoError(t, err)
	assert.Contains(t, out, "SIGNIFICANT STRESS")
	assert.Contains(t, out, "VOLATILE")

	out, err = run(t, "verdict", "--mean", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "RECOVERY STATE")

	_, err = run(t, "verdict")
	assert.Error(t, err)
}

func TestProfile_SaveAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")

	out, err := run(t, "profile", "save", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	saved, err := profile.Load(path)
	require.NoError(t, err)
	assert.Equal(t, profile.Default().StationNode, saved.StationNode)

	out, err = run(t, "--profile", path, "profile", "show", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"station_node": "IN-HYD-SMS-ALPHA-01"`)

	out, err = run(t, "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "artifact_threshold: 2")

	_, err = run(t, "profile", "show", "--format", "toml")
	assert.Error(t, err)
}
