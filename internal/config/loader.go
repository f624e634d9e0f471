package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "COMMITD_"

// Load loads configuration from the given YAML file (optional) and
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (COMMITD_SERVER_PORT, COMMITD_NOTIFY_PROVIDER, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables drop the COMMITD_ prefix and split on the first
// underscore into section and field. The systems section nests one level
// deeper, so its keys split twice:
//
//	COMMITD_SERVER_PORT            -> server.port
//	COMMITD_NOTIFY_SUMMARY_CHANNEL -> notify.summary_channel
//	COMMITD_RETRY_MAX_ATTEMPTS     -> retry.max_attempts
//	COMMITD_SYSTEMS_CRM_API_KEY    -> systems.crm.api_key
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		// systems nests per-backend sections, so SYSTEMS_CRM_API_KEY
		// needs a second split to reach systems.crm.api_key.
		if parts[0] == "systems" {
			if sub := strings.SplitN(parts[1], "_", 2); len(sub) == 2 {
				return parts[0] + "." + sub[0] + "." + sub[1]
			}
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadBytes parses configuration from raw YAML.
func LoadBytes(content []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with all defaults applied and no file
// or environment overrides.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}
