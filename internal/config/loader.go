package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables consulted by Load.
const (
	EnvPrefix  = "MLSCORE_"
	EnvConfig  = EnvPrefix + "CONFIG"
	EnvEnvFile = EnvPrefix + "ENV_FILE"
)

// containerVars are the unprefixed variables platforms commonly inject.
var containerVars = map[string]string{ //nolint:gochecknoglobals // static lookup table
	"PORT": "port",
	"HOST": "host",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MLSCORE_CONFIG is set
//  3. PORT and HOST
//  4. env (prefix MLSCORE_)
//
// If MLSCORE_ENV_FILE names a dotenv file it is loaded first; variables
// already present in the environment win.
func Load(_ context.Context) (*Config, error) {
	base := New()

	if path := os.Getenv(EnvEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("%w: env file %s: %w", ErrLoadConfig, path, err)
		}
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Returning "" from the callback drops the variable.
	bare := env.ProviderWithValue("", ".", func(s, v string) (string, any) {
		if isServiceLink(v) {
			return "", nil
		}
		return containerVars[s], v
	})
	if err := k.Load(bare, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// MLSCORE_MAX_BODY_BYTES -> max_body_bytes. Underscores are kept to
	// match the flat koanf tags.
	prefixed := env.ProviderWithValue(EnvPrefix, ".", func(s, v string) (string, any) {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		switch key {
		case "config", "env_file":
			return "", nil
		}
		if isServiceLink(v) {
			return "", nil
		}
		return key, v
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// isServiceLink reports Docker/Kubernetes service-link values such as
// MLSCORE_PORT=tcp://10.96.0.12:5000, injected for a Service named mlscore.
// None of the config keys accept a URL.
func isServiceLink(v string) bool {
	return strings.Contains(v, "://")
}
