package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable conventions.
const (
	EnvPrefix     = "EFAST_"
	EnvConfigPath = "EFAST_CONFIG"
)

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, env and decode failures in Load.
	ErrLoadConfig = errors.New("load config failed")
)

// Load returns the validated configuration. Later layers win:
// defaults from New, then the YAML file named by EFAST_CONFIG, then
// EFAST_* variables (EFAST_SENSOR_WIDTH sets sensor_width).
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")
	if err := loadFile(k, os.Getenv(EnvConfigPath)); err != nil {
		return nil, err
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	return nil
}

// loadEnv maps EFAST_FOO_BAR to foo_bar. The keys are flat, so underscores
// are not turned into nesting dots.
func loadEnv(k *koanf.Koanf) error {
	keyOf := func(name string) string {
		if name == EnvConfigPath {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", keyOf), nil); err != nil {
		return fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	return nil
}
