package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if cfg.LogLevel != "" {
		t.Fatalf("expected zero-value config, got %+v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log_level: debug
log_format: json
store_config_path: /tmp/db.json
updater_overrides:
  iftable:
    frequency_seconds: 10
    reinit_rate: 6
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" || cfg.StoreConfigPath != "/tmp/db.json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	ov, ok := cfg.UpdaterOverrides["iftable"]
	if !ok || ov.FrequencySeconds != 10 || ov.ReinitRate != 6 {
		t.Fatalf("unexpected override: %+v ok=%v", ov, ok)
	}
}

func TestPathFromEnvDefault(t *testing.T) {
	t.Setenv("SNMP_SUBAGENT_CONFIG", "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Fatalf("expected default path, got %q", got)
	}
}
