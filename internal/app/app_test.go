package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeStoreConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "database_config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestNewAppliesDefaults(t *testing.T) {
	a := New(Config{}, nil)
	if a.cfg.StoreConfigPath == "" {
		t.Fatal("expected a default store config path")
	}
	if a.cfg.UpdateFrequency != 5*time.Second {
		t.Fatalf("expected default update frequency of 5s, got %v", a.cfg.UpdateFrequency)
	}
	if a.cfg.Descriptor == "" {
		t.Fatal("expected a default descriptor")
	}
}

func TestStartFailsOnMissingStoreConfig(t *testing.T) {
	a := New(Config{StoreConfigPath: filepath.Join(t.TempDir(), "nope.json")}, nil)
	if err := a.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when the store config file is missing")
	}
}

func TestStartFailsWhenRequiredDatabaseUndeclared(t *testing.T) {
	// A syntactically valid config that never mentions APPL_DB/CONFIG_DB
	// must fail fast, before any store connection is attempted.
	raw, err := json.Marshal(map[string]interface{}{
		"INSTANCES": map[string]interface{}{"redis0": map[string]interface{}{"hostname": "127.0.0.1", "port": 6379}},
		"DATABASES": map[string]interface{}{"OTHER_DB": map[string]interface{}{"id": 9, "instance": "redis0"}},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := writeStoreConfig(t, string(raw))

	a := New(Config{StoreConfigPath: path}, nil)
	if err := a.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when APPL_DB/CONFIG_DB are undeclared")
	}
}
