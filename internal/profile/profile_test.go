package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())

	assert.Equal(t, 150*time.Millisecond, p.PollingRate)
	assert.Equal(t, 120, p.GraphBufferLimit)
	assert.Equal(t, 2.0, p.ArtifactThreshold)
	assert.Equal(t, 0.01, p.DivergenceDelta)
	assert.Equal(t, 8.0, p.VerdictThresholds.Critical)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(p *Profile){
		"zero window":          func(p *Profile) { p.GraphBufferLimit = 0 },
		"negative interval":    func(p *Profile) { p.MatrixUpdateInterval = -time.Second },
		"unordered thresholds": func(p *Profile) { p.VerdictThresholds.High = 9.0 },
		"equal thresholds":     func(p *Profile) { p.VerdictThresholds.Elevated = p.VerdictThresholds.Nominal },
		"unknown mode":         func(p *Profile) { p.MLMode = "ensemble" },
		"no techniques":        func(p *Profile) { p.MLTechniques = nil },
		"smoothing range":      func(p *Profile) { p.NeuralSmoothing = 120 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := Default()
			mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProfile))
		})
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), p); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := []byte(`
polling_rate: 300ms
ml_mode: hybrid
ml_techniques: [cul, lof, pca]
verdict_thresholds:
  critical: 9.0
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 300*time.Millisecond, p.PollingRate)
	assert.Equal(t, "hybrid", p.MLMode)
	assert.Equal(t, []string{"cul", "lof", "pca"}, p.MLTechniques)
	assert.Equal(t, 9.0, p.VerdictThresholds.Critical)
	assert.Equal(t, 5.5, p.VerdictThresholds.High)
	assert.Equal(t, 120, p.GraphBufferLimit)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EDA_STATION_NODE", "IN-TEST-NODE")

	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "IN-TEST-NODE", p.StationNode)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ml_window: 0\n"), 0o644))

	_, err := Load(path)
	assert.True(t, errors.Is(err, ErrInvalidProfile))
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")

	p := Default()
	p.Theme = "#10b981"
	p.SecurityLevel = "Maximum"
	p.MLTechniques = []string{"dbscan", "pca"}
	require.NoError(t, Save(p, path))

	loaded, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(p, loaded); diff != "" {
		t.Errorf("profile mismatch after save (-want +got):\n%s", diff)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	p := Default()
	c := p.Clone()
	c.MLTechniques[0] = "gmm"

	assert.Equal(t, "cul", p.MLTechniques[0])
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.yaml")
	require.NoError(t, Save(Default(), path))

	changed := make(chan *Profile, 16)
	w, err := Watch(path, func(p *Profile) {
		select {
		case changed <- p:
		default:
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "solo", w.Current().MLMode)

	updated := Default()
	updated.MLMode = "hybrid"
	require.NoError(t, Save(updated, path))

	// запись может прийти несколькими событиями, ждем итогового состояния
	deadline := time.After(5 * time.Second)
	for seen := false; !seen; {
		select {
		case p := <-changed:
			seen = p.MLMode == "hybrid"
		case <-deadline:
			t.Fatal("profile change was not observed")
		}
	}

	assert.Eventually(t, func() bool {
		return w.Current().MLMode == "hybrid"
	}, 2*time.Second, 20*time.Millisecond)
}
