// Package config loads clearcore.yaml and supplies defaults for every
// knob the orchestrator and the auditor agent share: file paths, outbound
// call timeouts, the LLM endpoint and Slack notification settings.
package config

import "time"

// Config is the resolved configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Paths    PathsConfig    `yaml:"paths"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	LLM      LLMConfig      `yaml:"llm"`
	Slack    SlackConfig    `yaml:"slack"`
}

// ListenConfig holds the bind addresses.
type ListenConfig struct {
	Orchestrator string `yaml:"orchestrator"`
	Auditor      string `yaml:"auditor"`
}

// PathsConfig holds the persisted state files. Relative paths resolve
// against the config directory.
type PathsConfig struct {
	AgentsSnapshot string `yaml:"agents_snapshot"`
	Waterdrops     string `yaml:"waterdrops"`
	LicenseKeys    string `yaml:"license_keys"`
	ManifestSchema string `yaml:"manifest_schema"`
	LastCheck      string `yaml:"last_check"`
}

// TimeoutsConfig bounds every outbound call.
type TimeoutsConfig struct {
	Register    time.Duration `yaml:"register"`
	Metrics     time.Duration `yaml:"metrics"`
	Policy      time.Duration `yaml:"policy"`
	Execute     time.Duration `yaml:"execute"`
	Feasibility time.Duration `yaml:"feasibility"`
	Plan        time.Duration `yaml:"plan"`
	Audit       time.Duration `yaml:"audit"`
}

// LLMConfig holds chat-completions settings. The bearer token itself comes
// from the license keys file, never from YAML.
type LLMConfig struct {
	Endpoint         string  `yaml:"endpoint"`
	Provider         string  `yaml:"provider"` // key into the license keys file
	Model            string  `yaml:"model"`
	PlanTemperature  float64 `yaml:"plan_temperature"`
	AuditTemperature float64 `yaml:"audit_temperature"`
}

// SlackConfig holds notification settings. TokenEnv names the environment
// variable carrying the bot token; notifications are disabled when it is
// unset or the variable is empty.
type SlackConfig struct {
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Orchestrator: ":8000",
			Auditor:      ":8600",
		},
		Paths: PathsConfig{
			AgentsSnapshot: "agents.json",
			Waterdrops:     "aiwaterdrops.json",
			LicenseKeys:    "license_keys.json",
			ManifestSchema: "manifest_schema.json",
			LastCheck:      "last_check.json",
		},
		Timeouts: TimeoutsConfig{
			Register:    5 * time.Second,
			Metrics:     3 * time.Second,
			Policy:      4 * time.Second,
			Execute:     30 * time.Second,
			Feasibility: 20 * time.Second,
			Plan:        30 * time.Second,
			Audit:       45 * time.Second,
		},
		LLM: LLMConfig{
			Endpoint:         "https://api.mistral.ai/v1/chat/completions",
			Provider:         "mistral",
			Model:            "mistral-small",
			PlanTemperature:  0.5,
			AuditTemperature: 0.2,
		},
		Slack: SlackConfig{
			TokenEnv: "SLACK_BOT_TOKEN",
		},
	}
}
