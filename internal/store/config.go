package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultConfigPath is used when DB_CONFIG_FILE is unset.
const DefaultConfigPath = "/var/run/redis/sonic-db/database_config.json"

// ConfigPathFromEnv returns $DB_CONFIG_FILE, or DefaultConfigPath if unset.
func ConfigPathFromEnv() string {
	if v := os.Getenv("DB_CONFIG_FILE"); v != "" {
		return v
	}
	return DefaultConfigPath
}

// Instance is one entry of the top-level "INSTANCES" map: the host/port a
// named Redis instance runs on.
type Instance struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

// Database is one entry of the top-level "DATABASES" map: a logical
// database name's numeric ID and which instance hosts it.
type Database struct {
	ID       int    `json:"id"`
	Instance string `json:"instance"`
}

// Config is the parsed shape of the store configuration file.
type Config struct {
	Instances map[string]Instance `json:"INSTANCES"`
	Databases map[string]Database `json:"DATABASES"`
}

// ConfigError reports a missing or malformed store configuration file.
// This is fatal at startup, logged at ERROR.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("store config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadConfig reads and validates the store configuration file at path. Both
// top-level keys (INSTANCES, DATABASES) are required, even if empty — a
// missing file or missing top-level key is a fatal startup error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	var raw struct {
		Instances *map[string]Instance `json:"INSTANCES"`
		Databases *map[string]Database `json:"DATABASES"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}
	if raw.Instances == nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("missing top-level key INSTANCES")}
	}
	if raw.Databases == nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("missing top-level key DATABASES")}
	}
	return &Config{Instances: *raw.Instances, Databases: *raw.Databases}, nil
}

// InstanceForDB resolves the Instance hosting database db_name, returning an
// error if db_name is undeclared or names an instance that doesn't exist.
func (c *Config) InstanceForDB(dbName string) (Instance, int, error) {
	db, ok := c.Databases[dbName]
	if !ok {
		return Instance{}, 0, fmt.Errorf("store config: database %q not declared", dbName)
	}
	inst, ok := c.Instances[db.Instance]
	if !ok {
		return Instance{}, 0, fmt.Errorf("store config: database %q references unknown instance %q", dbName, db.Instance)
	}
	return inst, db.ID, nil
}
