package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the file-backed defaults. Flags passed on the command
// line win over it.
type Config struct {
	Mode       string `toml:"mode"`
	Colors     int    `toml:"colors"`
	Seed       int64  `toml:"seed"`
	Restarts   int    `toml:"restarts"`
	MaxIter    int    `toml:"max_iter"`
	Workers    int    `toml:"workers"`
	Method     string `toml:"method"`
	SwatchTile int    `toml:"swatch_tile"`
	DebounceMS int    `toml:"debounce_ms"` // milliseconds, 0 = default (250ms)
}

func (c *Config) Debounce() time.Duration {
	if c.DebounceMS > 0 {
		return time.Duration(c.DebounceMS) * time.Millisecond
	}
	return 250 * time.Millisecond
}

func defaultConfig() *Config {
	return &Config{
		Mode:       "kmeans",
		Colors:     16,
		Seed:       42,
		Restarts:   10,
		MaxIter:    300,
		Method:     "dominant",
		SwatchTile: 64,
	}
}

// LoadConfig reads the TOML file at path over the built-in defaults.
// A missing file is not an error; the defaults simply stand.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
