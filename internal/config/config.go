package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IRCBRIDGE_"

// Load builds the configuration. An empty path skips the file layer; a
// missing file is an error.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, environment map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(&cfg.Settings, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, errors.Join(errors.New("invalid config"), err)
	}
	return cfg, nil
}
