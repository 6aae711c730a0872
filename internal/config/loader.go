package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SPIKEPIPE_CONFIG is set
//  3. env (prefix SPIKEPIPE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SPIKEPIPE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SPIKEPIPE_ADDR, SPIKEPIPE_CHUNK_FRAMES, ...
	// Keys keep their underscores to match the koanf struct tags.
	envProvider := env.Provider("SPIKEPIPE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "spikepipe_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.ChunkFrames <= 0:
		return fmt.Errorf("%w: chunk_frames must be positive", ErrInvalidConfig)
	case c.JobWorkers <= 0:
		return fmt.Errorf("%w: job_workers must be positive", ErrInvalidConfig)
	case c.ChunkWorkers <= 0:
		return fmt.Errorf("%w: chunk_workers must be positive", ErrInvalidConfig)
	}
	return nil
}
