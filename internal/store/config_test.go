package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "database_config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigValid(t *testing.T) {
	path := writeConfig(t, `{
		"INSTANCES": {"redis": {"hostname": "127.0.0.1", "port": 6379}},
		"DATABASES": {"APPL_DB": {"id": 0, "instance": "redis"}, "CONFIG_DB": {"id": 4, "instance": "redis"}}
	}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	inst, id, err := cfg.InstanceForDB("APPL_DB")
	if err != nil {
		t.Fatalf("InstanceForDB: %v", err)
	}
	if id != 0 || inst.Hostname != "127.0.0.1" || inst.Port != 6379 {
		t.Fatalf("unexpected resolution: %+v id=%d", inst, id)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestLoadConfigMissingTopLevelKey(t *testing.T) {
	path := writeConfig(t, `{"INSTANCES": {}}`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for missing DATABASES key")
	}
}

func TestInstanceForDBUnknownDatabase(t *testing.T) {
	path := writeConfig(t, `{"INSTANCES": {}, "DATABASES": {}}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, _, err := cfg.InstanceForDB("NOPE"); err == nil {
		t.Fatal("expected error for undeclared database")
	}
}

func TestConfigPathFromEnvDefault(t *testing.T) {
	t.Setenv("DB_CONFIG_FILE", "")
	if got := ConfigPathFromEnv(); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
}

func TestConfigPathFromEnvOverride(t *testing.T) {
	t.Setenv("DB_CONFIG_FILE", "/tmp/custom.json")
	if got := ConfigPathFromEnv(); got != "/tmp/custom.json" {
		t.Fatalf("expected override path, got %q", got)
	}
}
