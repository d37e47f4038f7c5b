// Package platform decides where sectboard keeps its config, database, and
// fixture files for the current user.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories when no override is set.
const DefaultAppName = "sectboard"

// Environment variables that pin one file regardless of platform rules.
const (
	EnvConfigPath = "SECTBOARD_CONFIG"
	EnvDBPath     = "SECTBOARD_DB_PATH"
)

// Paths lists the per-user files sectboard reads and writes.
type Paths struct {
	AppName     string
	ConfigPath  string
	DataDir     string
	DBPath      string
	FixturePath string
	// DBPinned is set when DBPath came from Options or EnvDBPath rather than
	// the data directory.
	DBPinned bool
}

// Options tunes path resolution. Pinned paths win over the environment,
// which wins over the platform layout.
type Options struct {
	AppName string
	// DevMode suffixes the app name so dev runs never touch real data.
	DevMode     bool
	ConfigPath  string
	DBPath      string
	FixturePath string
}

// Getenv looks up one environment variable. os.Getenv satisfies it.
type Getenv func(string) string

// rootVars names the variables that move the config and data roots on the
// platforms that honor them.
var rootVars = map[string]struct{ config, data string }{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// Resolve returns the paths of the current user.
func Resolve(opts Options) (Paths, error) {
	configRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataRoot := configRoot
	if runtime.GOOS == "linux" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", err)
		}
		dataRoot = filepath.Join(home, ".local", "share")
	}
	return ResolveFor(runtime.GOOS, os.Getenv, configRoot, dataRoot, opts)
}

// ResolveFor resolves paths for one platform from explicit roots and
// environment.
func ResolveFor(goos string, getenv Getenv, configRoot, dataRoot string, opts Options) (Paths, error) {
	if configRoot == "" || dataRoot == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	name := firstSet(opts.AppName, DefaultAppName)
	if opts.DevMode {
		name += "-dev"
	}
	if vars, ok := rootVars[goos]; ok {
		configRoot = firstSet(getenv(vars.config), configRoot)
		dataRoot = firstSet(getenv(vars.data), dataRoot)
	}

	p := Paths{AppName: name, DataDir: filepath.Join(dataRoot, name)}
	p.ConfigPath = firstSet(opts.ConfigPath, getenv(EnvConfigPath), filepath.Join(configRoot, name, "config.toml"))
	if pinned := firstSet(opts.DBPath, getenv(EnvDBPath)); pinned != "" {
		p.DBPath, p.DBPinned = pinned, true
	} else {
		p.DBPath = filepath.Join(p.DataDir, name+".db")
	}
	p.FixturePath = firstSet(opts.FixturePath, filepath.Join(p.DataDir, "sections.yaml"))
	return p, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
