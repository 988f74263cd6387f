package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const configFileName = "clearcore.yaml"

// Load reads clearcore.yaml from configDir and merges it over the built-in
// defaults. A missing file is not an error; the defaults run as-is.
// Relative state paths are resolved against configDir.
func Load(configDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Info("No configuration file, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		data = ExpandEnv(data)

		var user Config
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge %s: %w", path, err)
		}
		slog.Info("Configuration loaded", "path", path)
	}

	cfg.Paths.AgentsSnapshot = resolvePath(configDir, cfg.Paths.AgentsSnapshot)
	cfg.Paths.Waterdrops = resolvePath(configDir, cfg.Paths.Waterdrops)
	cfg.Paths.LicenseKeys = resolvePath(configDir, cfg.Paths.LicenseKeys)
	cfg.Paths.ManifestSchema = resolvePath(configDir, cfg.Paths.ManifestSchema)
	cfg.Paths.LastCheck = resolvePath(configDir, cfg.Paths.LastCheck)
	return cfg, nil
}

// SlackToken resolves the bot token from the configured environment
// variable. Empty when notifications are disabled.
func (c *Config) SlackToken() string {
	if c.Slack.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Slack.TokenEnv)
}

func resolvePath(configDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
