package config

import (
	"os"
	"path/filepath"

	"github.com/samber/lo"
)

const (
	// EnvToken overrides the CMDB token from the config file
	EnvToken = "MESHGEN_CMDB_TOKEN"
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "MESHGEN_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "meshgen.yaml"

	appDir  = "meshgen"
	xdgFile = "config.yaml"
)

// SearchPaths lists the config locations in lookup order. Locations whose
// environment variable is unset are left out.
func SearchPaths() []string {
	var xdg, home string
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		xdg = filepath.Join(dir, appDir, xdgFile)
	}
	if dir := os.Getenv("HOME"); dir != "" {
		home = filepath.Join(dir, ".config", appDir, xdgFile)
	}
	local := ConfigFileName
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		local = abs
	}

	return lo.Compact([]string{
		os.Getenv(EnvConfigPath),
		local,
		xdg,
		home,
		filepath.Join("/etc", appDir, xdgFile),
	})
}

// FindConfigPath returns the first existing entry of SearchPaths, or "" when
// there is none
func FindConfigPath() string {
	path, _ := lo.Find(SearchPaths(), func(p string) bool {
		info, err := os.Stat(p)
		return err == nil && !info.IsDir()
	})
	return path
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}
