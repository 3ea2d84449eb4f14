package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.CMDB.Timeout.Duration() != 30*time.Second {
		t.Errorf("CMDB.Timeout = %s, want 30s", cfg.CMDB.Timeout.Duration())
	}
	if cfg.CMDB.PageSize != 1000 {
		t.Errorf("CMDB.PageSize = %d, want 1000", cfg.CMDB.PageSize)
	}
	if cfg.Rules.Path == "" {
		t.Error("Rules.Path should have a default")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Snapshot: SnapshotConfig{YAML: "fleet.yaml"}}
	cfg.applyDefaults()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if cfg.Snapshot.Database != ":memory:" {
		t.Errorf("Snapshot.Database = %q, want :memory:", cfg.Snapshot.Database)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults without cmdb url", func(c *Config) {}, true},
		{"cmdb url", func(c *Config) { c.CMDB.URL = "https://netbox.example.com" }, false},
		{"snapshot instead of cmdb", func(c *Config) { c.Snapshot.Database = "fleet.db" }, false},
		{"bad level", func(c *Config) { c.CMDB.URL = "x"; c.Log.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.CMDB.URL = "x"; c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := LogConfig{Level: "debug", Format: "json"}.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %s, want debug", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("formatter = %T, want JSON", l.Formatter)
	}

	if _, err := (LogConfig{Level: "nope"}).NewLogger(); err == nil {
		t.Error("NewLogger() should reject unknown levels")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.CMDB.URL = "https://netbox.example.com"
	cfg.CMDB.ExactHostFilter = true
	cfg.CMDB.Timeout = Duration(5 * time.Second)
	cfg.Rules.Path = "/etc/meshgen/rules.yaml"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}
	if loaded.CMDB.URL != cfg.CMDB.URL {
		t.Errorf("CMDB.URL = %s, want %s", loaded.CMDB.URL, cfg.CMDB.URL)
	}
	if !loaded.CMDB.ExactHostFilter {
		t.Error("CMDB.ExactHostFilter should be true")
	}
	if loaded.CMDB.Timeout.Duration() != 5*time.Second {
		t.Errorf("CMDB.Timeout = %s, want 5s", loaded.CMDB.Timeout.Duration())
	}
	if loaded.Rules.Path != cfg.Rules.Path {
		t.Errorf("Rules.Path = %s, want %s", loaded.Rules.Path, cfg.Rules.Path)
	}
}

func TestLoadFromPathErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, _, err := LoadFromPath(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("LoadFromPath() should fail for a missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("cmdb:\n  timeout: soon\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(bad); err == nil {
		t.Error("LoadFromPath() should reject an invalid duration")
	}
}

func TestTokenFromEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("cmdb:\n  url: https://nb\n  token: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvToken, "from-env")
	cfg, _, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.CMDB.Token != "from-env" {
		t.Errorf("CMDB.Token = %q, want from-env", cfg.CMDB.Token)
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Chdir(tmpDir)

	// Should find config in working directory
	found := FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// Explicit path doesn't exist, should fall back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	found = FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}

	// Explicit path wins when it exists
	explicit := filepath.Join(t.TempDir(), "other.yaml")
	if err := cfg.Save(explicit); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if found = FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want %s", found, explicit)
	}
}

func TestSearchPaths(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/ops")

	paths := SearchPaths()
	want := []string{"/xdg/meshgen/config.yaml", "/home/ops/.config/meshgen/config.yaml", "/etc/meshgen/config.yaml"}
	if len(paths) != 4 {
		t.Fatalf("SearchPaths() = %v, want 4 entries", paths)
	}
	if filepath.Base(paths[0]) != ConfigFileName {
		t.Errorf("SearchPaths()[0] = %s, want working directory %s", paths[0], ConfigFileName)
	}
	for i, w := range want {
		if paths[i+1] != w {
			t.Errorf("SearchPaths()[%d] = %s, want %s", i+1, paths[i+1], w)
		}
	}

	t.Setenv(EnvConfigPath, "/explicit.yaml")
	t.Setenv("XDG_CONFIG_HOME", "")
	paths = SearchPaths()
	if paths[0] != "/explicit.yaml" {
		t.Errorf("SearchPaths()[0] = %s, want /explicit.yaml", paths[0])
	}
	if len(paths) != 4 {
		t.Errorf("SearchPaths() = %v, want unset XDG left out", paths)
	}
}

func TestSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Snapshot = SnapshotConfig{Database: ":memory:", YAML: "fleet.yaml"}

	s := cfg.Summary()
	if !strings.Contains(s, "snapshot :memory: (from fleet.yaml)") {
		t.Errorf("Summary() = %q, want snapshot source", s)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	// Test YAML marshaling
	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
