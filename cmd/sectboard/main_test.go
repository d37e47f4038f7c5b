package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/sectboard/internal/adapters/storage/fixture"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/config"
	"github.com/hylla/sectboard/internal/domain"
)

// TestMain pins dev mode off so tests never write workspace logs by default.
func TestMain(m *testing.M) {
	_ = os.Setenv("SECTBOARD_DEV_MODE", "false")
	os.Exit(m.Run())
}

type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// stubProgram swaps programFactory for the duration of one test and records
// the model handed to it.
func stubProgram(t *testing.T, runErr error) *tea.Model {
	t.Helper()
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	var got tea.Model
	programFactory = func(m tea.Model) program {
		got = m
		return fakeProgram{runErr: runErr}
	}
	return &got
}

// tempPaths returns a database path and a config path that does not exist.
func tempPaths(t *testing.T) (string, string) {
	t.Helper()
	tmp := t.TempDir()
	return filepath.Join(tmp, "sectboard.db"), filepath.Join(tmp, "missing.toml")
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "sectboard") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunStartsProgram(t *testing.T) {
	got := stubProgram(t, nil)
	dbPath, cfgPath := tempPaths(t)
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if *got == nil {
		t.Fatal("expected a model to be handed to the program")
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s, stat error %v", dbPath, err)
	}
}

func TestRunProgramErrorIsWrapped(t *testing.T) {
	stubProgram(t, io.ErrClosedPipe)
	dbPath, cfgPath := tempPaths(t)
	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "run tui program") {
		t.Fatalf("expected wrapped program error, got %v", err)
	}
}

func TestRunInvalidFlag(t *testing.T) {
	err := run(context.Background(), []string{"--unknown-flag"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected flag parse error")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"unknown-command"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunExportSeedsAndWritesSnapshot(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	outPath := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export", "--out", outPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}

	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion {
		t.Fatalf("unexpected snapshot version %q", snap.Version)
	}
	if want := len(fixture.Sample()); len(snap.Records) != want {
		t.Fatalf("expected %d seeded records, got %d", want, len(snap.Records))
	}
}

func TestRunExportToStdoutAndImportRoundTrip(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export"}, &out, io.Discard); err != nil {
		t.Fatalf("run(export stdout) error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(snap.Records) < 2 {
		t.Fatalf("expected sample records in export, got %d", len(snap.Records))
	}

	// move the last record to the front and rename it
	last := snap.Records[len(snap.Records)-1]
	last.Header = "Imported header"
	snap.Records = []domain.Record{last}
	encoded, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	inPath := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(inPath, encoded, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", inPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}

	out.Reset()
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export"}, &out, io.Discard); err != nil {
		t.Fatalf("run(export after import) error = %v", err)
	}
	var after app.Snapshot
	if err := json.Unmarshal(out.Bytes(), &after); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if after.Records[0].ID != last.ID || after.Records[0].Header != "Imported header" {
		t.Fatalf("expected imported record first, got %+v", after.Records[0])
	}
	if len(after.Records) != len(fixture.Sample()) {
		t.Fatalf("expected import to keep other records, got %d", len(after.Records))
	}
}

func TestRunImportErrors(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected missing --in error, got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err = run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", bad}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "decode snapshot json") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRunViewPrintsFilteredPage(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	sample := fixture.Sample()
	var out bytes.Buffer
	args := []string{"--db", dbPath, "--config", cfgPath, "view", "--plain", "--page-size", "10", "-q", sample[0].Header}
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run(view) error = %v", err)
	}
	output := out.String()
	if !strings.Contains(output, sample[0].Header) {
		t.Fatalf("expected searched header in output, got %q", output)
	}
	if !strings.Contains(output, "row(s) shown") {
		t.Fatalf("expected paging summary, got %q", output)
	}
}

func TestRunViewRejectsBadFlags(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	cases := map[string][]string{
		"sort":      {"view", "--sort", "nope"},
		"dir":       {"view", "--sort", "status", "--dir", "sideways"},
		"filter":    {"view", "--filter", "status"},
		"page":      {"view", "--page", "0"},
		"page-size": {"view", "--page-size", "0"},
		"huge-page": {"view", "--page-size", "9223372036854775807"},
	}
	for name, tail := range cases {
		t.Run(name, func(t *testing.T) {
			args := append([]string{"--db", dbPath, "--config", cfgPath}, tail...)
			if err := run(context.Background(), args, io.Discard, io.Discard); err == nil {
				t.Fatalf("expected error for %v", tail)
			}
		})
	}
}

func TestRunViewChangesAfterImport(t *testing.T) {
	dbPath, cfgPath := tempPaths(t)
	snap := app.Snapshot{Version: app.SnapshotVersion, Records: []domain.Record{fixture.Sample()[0]}}
	snap.Records[0].Header = "Renamed"
	encoded, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	inPath := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(inPath, encoded, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", inPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "view", "--plain", "--changes", "5"}, &out, io.Discard); err != nil {
		t.Fatalf("run(view --changes) error = %v", err)
	}
	if !strings.Contains(out.String(), "local (user)") {
		t.Fatalf("expected local actor in change feed, got %q", out.String())
	}
}

func TestRunFixtureBackend(t *testing.T) {
	got := stubProgram(t, nil)
	_, cfgPath := tempPaths(t)
	fixturePath := filepath.Join(t.TempDir(), "sections.yaml")
	if err := run(context.Background(), []string{"--config", cfgPath, "--fixture", fixturePath, "--watch"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(--fixture) error = %v", err)
	}
	if *got == nil {
		t.Fatal("expected a model to be handed to the program")
	}
	if _, err := os.Stat(fixturePath); err != nil {
		t.Fatalf("expected seeded fixture at %s, stat error %v", fixturePath, err)
	}
}

func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	if err := os.WriteFile(cfgPath, []byte("[database]\npath = \"/tmp/ignore-me.db\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("SECTBOARD_CONFIG", cfgPath)
	t.Setenv("SECTBOARD_DB_PATH", dbPath)

	if err := run(context.Background(), []string{"export", "--out", filepath.Join(tmp, "out.json")}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"chatty\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--config", cfgPath, "--db", filepath.Join(tmp, "x.db"), "export"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging level error, got %v", err)
	}
}

func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "sectx", "--dev", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: sectx", "dev_mode: true", "sectx-dev", "fixture: "} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
	out.Reset()
	if err := run(context.Background(), []string{"--fixture", "./board.yaml", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths --fixture) error = %v", err)
	}
	if !strings.Contains(out.String(), "fixture: ./board.yaml") {
		t.Fatalf("expected pinned fixture in paths output, got %q", out.String())
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("SECTBOARD_TEST_BOOL", "true")
	if v, ok := parseBoolEnv("SECTBOARD_TEST_BOOL"); !ok || !v {
		t.Fatalf("parseBoolEnv(true) = %t, %t", v, ok)
	}
	t.Setenv("SECTBOARD_TEST_BOOL", "maybe")
	if _, ok := parseBoolEnv("SECTBOARD_TEST_BOOL"); ok {
		t.Fatal("expected malformed value to be ignored")
	}
	t.Setenv("SECTBOARD_TEST_BOOL", "")
	if _, ok := parseBoolEnv("SECTBOARD_TEST_BOOL"); ok {
		t.Fatal("expected empty value to be ignored")
	}
}

func TestRunTUIModeWritesRuntimeLogsToFileOnly(t *testing.T) {
	stubProgram(t, nil)
	workspace := t.TempDir()
	t.Chdir(workspace)

	var stderr bytes.Buffer
	args := []string{"--dev", "--db", filepath.Join(workspace, "sectboard.db"), "--config", filepath.Join(workspace, "missing.toml")}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no runtime stderr output in TUI mode, got %q", got)
	}

	logDir := filepath.Join(workspace, ".sectboard", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s", logDir)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "starting tui program loop") {
		t.Fatalf("expected TUI lifecycle entries in log file, got %q", content)
	}
}

func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
}

func TestDevLogFilePathNaming(t *testing.T) {
	day := time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)
	got, err := devLogFilePath("/var/tmp/logs", "my app/dev", day)
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if want := filepath.Join("/var/tmp/logs", "my-app-dev-20260304.log"); got != want {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}
	if stem := logFileStem("  "); stem != "sectboard" {
		t.Fatalf("logFileStem(blank) = %q", stem)
	}
}

func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "sectboard", false, config.Default("/tmp/sectboard.db").Logging, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")
	logger.Debug("hidden below info")

	out := console.String()
	for _, want := range []string{"before", "after"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected console log to include %q, got %q", want, out)
		}
	}
	for _, unwanted := range []string{"during", "hidden below info"} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("expected console log to omit %q, got %q", unwanted, out)
		}
	}
}
