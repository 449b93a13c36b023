package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120.0, cfg.Engine.Tempo)
	assert.Equal(t, "1/16", cfg.Engine.Division)
	assert.Equal(t, "up", cfg.Engine.Pattern)
	assert.Equal(t, 16, cfg.Engine.Steps)
	assert.Equal(t, 60, cfg.Engine.RootNote)
	assert.Equal(t, 1, cfg.Output.Channel)
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	cfg.Engine.Tempo = 95
	cfg.Engine.Pattern = "converge"
	cfg.Output.PortName = "Test Synth"
	cfg.Debug = true
	require.NoError(t, cfg.Save())

	path, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "go-arpeggio", "config.json"), path)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 95.0, loaded.Engine.Tempo)
	assert.Equal(t, "converge", loaded.Engine.Pattern)
	assert.Equal(t, "Test Synth", loaded.Output.PortName)
	assert.True(t, loaded.Debug)
}
