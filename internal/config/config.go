// Package config provides configuration management for meshgen.
//
// Config file locations (priority order):
//  1. $MESHGEN_CONFIG
//  2. ./meshgen.yaml
//  3. $XDG_CONFIG_HOME/meshgen/config.yaml
//  4. ~/.config/meshgen/config.yaml
//  5. /etc/meshgen/config.yaml
//
// The CMDB token may be kept out of the file through $MESHGEN_CMDB_TOKEN.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 1000
	defaultRules    = "./rules.yaml"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		CMDB: CMDBConfig{
			Timeout:  Duration(defaultTimeout),
			PageSize: defaultPageSize,
		},
		Rules: RulesConfig{Path: defaultRules},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.CMDB.Timeout == 0 {
		c.CMDB.Timeout = Duration(defaultTimeout)
	}
	if c.CMDB.PageSize <= 0 {
		c.CMDB.PageSize = defaultPageSize
	}
	if c.Rules.Path == "" {
		c.Rules.Path = defaultRules
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Snapshot.YAML != "" && c.Snapshot.Database == "" {
		c.Snapshot.Database = ":memory:"
	}
}

// applyEnv overrides secrets from the environment
func (c *Config) applyEnv() {
	if token := os.Getenv(EnvToken); token != "" {
		c.CMDB.Token = token
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	var errs []error
	if !c.Snapshot.Enabled() && c.CMDB.URL == "" {
		errs = append(errs, errors.New("cmdb.url is required unless a snapshot is configured"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// NewLogger builds a logger from the log settings
func (c LogConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	if strings.EqualFold(c.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	source := "cmdb " + c.CMDB.URL
	if c.Snapshot.Enabled() {
		source = "snapshot " + c.Snapshot.Database
		if c.Snapshot.YAML != "" {
			source += " (from " + c.Snapshot.YAML + ")"
		}
	}

	summary := fmt.Sprintf("Source: %s\n", source)
	summary += fmt.Sprintf("Rules: %s, Exact host filter: %v\n", c.Rules.Path, c.CMDB.ExactHostFilter)
	summary += fmt.Sprintf("Log: %s/%s", c.Log.Level, c.Log.Format)

	return summary
}
