package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// EngineConfig stores the performance settings restored on startup
type EngineConfig struct {
	Tempo    float64 `json:"tempo,omitempty"`
	Division string  `json:"division,omitempty"`
	Swing    float64 `json:"swing,omitempty"`
	Pattern  string  `json:"pattern,omitempty"`
	Octaves  int     `json:"octaves,omitempty"`
	Gate     float64 `json:"gate,omitempty"`
	Steps    int     `json:"steps,omitempty"`
	RootNote int     `json:"rootNote,omitempty"`
}

// OutputConfig defines the MIDI output
type OutputConfig struct {
	PortName string `json:"portName,omitempty"`
	Channel  int    `json:"channel,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Engine  EngineConfig `json:"engine,omitempty"`
	Output  OutputConfig `json:"output,omitempty"`
	Palette string       `json:"palette,omitempty"` // path to a .gpl file
	Debug   bool         `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Tempo:    120,
			Division: "1/16",
			Pattern:  "up",
			Octaves:  1,
			Gate:     0.8,
			Steps:    16,
			RootNote: 60,
		},
		Output: OutputConfig{
			Channel: 1,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-arpeggio"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
