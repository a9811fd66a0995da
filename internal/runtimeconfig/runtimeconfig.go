// Package runtimeconfig loads the agent's optional operator-tunable YAML
// file. Missing file is not an error; hard-coded defaults apply.
package runtimeconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when $SNMP_SUBAGENT_CONFIG is unset.
const DefaultPath = "/etc/sonic/snmp_subagent.yaml"

// UpdaterOverride tunes one MIB module's updater cadence, overriding its
// hard-coded default.
type UpdaterOverride struct {
	FrequencySeconds int `yaml:"frequency_seconds"`
	ReinitRate       int `yaml:"reinit_rate"`
}

// Config is the optional runtime-tunable surface: log level/format,
// per-module updater overrides, and the trap engine's store config path
// override.
type Config struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	UpdaterOverrides map[string]UpdaterOverride `yaml:"updater_overrides"`

	StoreConfigPath string `yaml:"store_config_path"`
}

// PathFromEnv returns $SNMP_SUBAGENT_CONFIG, or DefaultPath if unset.
func PathFromEnv() string {
	if v := os.Getenv("SNMP_SUBAGENT_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads and parses the YAML file at path. A missing file returns a
// zero-valued Config and no error — callers apply hard-coded defaults on
// top of whatever fields Config leaves unset.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("runtimeconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("runtimeconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}
