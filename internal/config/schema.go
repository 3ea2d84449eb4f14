package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	CMDB     CMDBConfig     `yaml:"cmdb"`
	Snapshot SnapshotConfig `yaml:"snapshot,omitempty"`
	Rules    RulesConfig    `yaml:"rules"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
}

// CMDBConfig holds the NetBox connection settings
type CMDBConfig struct {
	URL             string   `yaml:"url"`
	Token           string   `yaml:"token,omitempty"` // prefer $MESHGEN_CMDB_TOKEN
	Insecure        bool     `yaml:"insecure,omitempty"`
	ExactHostFilter bool     `yaml:"exact_host_filter,omitempty"`
	Timeout         Duration `yaml:"timeout"`
	PageSize        int      `yaml:"page_size"`
}

// SnapshotConfig selects an offline CMDB snapshot instead of NetBox
type SnapshotConfig struct {
	Database string `yaml:"database,omitempty"` // SQLite file, ":memory:" when only YAML is given
	YAML     string `yaml:"yaml,omitempty"`     // imported into Database on start
}

// Enabled reports whether a snapshot replaces the live CMDB
func (s SnapshotConfig) Enabled() bool {
	return s.Database != "" || s.YAML != ""
}

// RulesConfig points at the declarative rule file
type RulesConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // logrus level name
	Format string `yaml:"format"` // text or json
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"` // written after each run
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
