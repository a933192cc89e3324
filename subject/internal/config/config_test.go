package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadArgs_Defaults(t *testing.T) {
	cfg, err := LoadArgs([]string{"-key", "482913", "-seed", "7"})
	require.NoError(t, err)

	assert.Equal(t, "482913", cfg.Passport.AccessKey)
	assert.Equal(t, 16*time.Millisecond, cfg.Emulator.SampleRate)
	assert.Equal(t, int64(7), cfg.Emulator.Seed)
	assert.Equal(t, "http", cfg.Output.Mode)
	assert.Equal(t, 2.15, cfg.Kernel.KineticLimit)
	assert.Equal(t, 60, cfg.Kernel.TerminalMax)
}

func TestLoadArgs_Rejects(t *testing.T) {
	for _, args := range [][]string{
		{"-rate", "0s"},
		{"-duration", "soon"},
		{"-mode", "carrier-pigeon"},
	} {
		_, err := LoadArgs(args)
		assert.Error(t, err, "%v", args)
	}
}
