package platform

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func envOf(vars map[string]string) Getenv {
	return func(name string) string { return vars[name] }
}

func TestResolveForPlatformRoots(t *testing.T) {
	cases := []struct {
		name       string
		goos       string
		env        map[string]string
		configRoot string
		dataRoot   string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			configRoot: "/fallback/config",
			dataRoot:   "/fallback/data",
			wantConfig: "/xdg/config",
			wantData:   "/xdg/data",
		},
		{
			name:       "linux blank xdg falls back",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "  "},
			configRoot: "/home/me/.config",
			dataRoot:   "/home/me/.local/share",
			wantConfig: "/home/me/.config",
			wantData:   "/home/me/.local/share",
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Roaming`, "LOCALAPPDATA": `C:\Local`},
			configRoot: `C:\fallback`,
			dataRoot:   `C:\fallback`,
			wantConfig: `C:\Roaming`,
			wantData:   `C:\Local`,
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored", "XDG_DATA_HOME": "/ignored"},
			configRoot: "/Users/me/Library/Application Support",
			dataRoot:   "/Users/me/Library/Application Support",
			wantConfig: "/Users/me/Library/Application Support",
			wantData:   "/Users/me/Library/Application Support",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveFor(tc.goos, envOf(tc.env), tc.configRoot, tc.dataRoot, Options{})
			if err != nil {
				t.Fatalf("ResolveFor() error = %v", err)
			}
			dataDir := filepath.Join(tc.wantData, "sectboard")
			want := Paths{
				AppName:     "sectboard",
				ConfigPath:  filepath.Join(tc.wantConfig, "sectboard", "config.toml"),
				DataDir:     dataDir,
				DBPath:      filepath.Join(dataDir, "sectboard.db"),
				FixturePath: filepath.Join(dataDir, "sections.yaml"),
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("paths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveForPinnedFiles(t *testing.T) {
	env := envOf(map[string]string{EnvConfigPath: "/env/config.toml", EnvDBPath: "/env/table.db"})

	fromEnv, err := ResolveFor("linux", env, "/cfg", "/data", Options{})
	if err != nil {
		t.Fatalf("ResolveFor() error = %v", err)
	}
	if fromEnv.ConfigPath != "/env/config.toml" || fromEnv.DBPath != "/env/table.db" || !fromEnv.DBPinned {
		t.Fatalf("expected env pins, got %#v", fromEnv)
	}

	fromFlags, err := ResolveFor("linux", env, "/cfg", "/data", Options{
		ConfigPath:  "/flag/config.toml",
		DBPath:      "/flag/table.db",
		FixturePath: "./sections.json",
	})
	if err != nil {
		t.Fatalf("ResolveFor() error = %v", err)
	}
	if fromFlags.ConfigPath != "/flag/config.toml" || fromFlags.DBPath != "/flag/table.db" || fromFlags.FixturePath != "./sections.json" {
		t.Fatalf("expected option pins to beat env, got %#v", fromFlags)
	}
}

func TestResolveForDevModeAndAppName(t *testing.T) {
	got, err := ResolveFor("darwin", nil, "/cfg", "/data", Options{AppName: " board ", DevMode: true})
	if err != nil {
		t.Fatalf("ResolveFor() error = %v", err)
	}
	if got.AppName != "board-dev" || got.DBPath != filepath.Join("/data", "board-dev", "board-dev.db") || got.DBPinned {
		t.Fatalf("unexpected dev paths %#v", got)
	}
	if _, err := ResolveFor("darwin", nil, "", "/data", Options{}); err == nil {
		t.Fatal("expected error for empty config root")
	}
}

func TestResolveSmoke(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvDBPath, "")
	p, err := Resolve(Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.ConfigPath == "" || p.DataDir == "" || p.FixturePath == "" || p.DBPinned {
		t.Fatalf("expected resolved user paths, got %#v", p)
	}
	if filepath.Base(p.DBPath) != DefaultAppName+".db" {
		t.Fatalf("unexpected db name %q", p.DBPath)
	}
}
