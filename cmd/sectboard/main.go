package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/sectboard/internal/adapters/storage/fixture"
	"github.com/hylla/sectboard/internal/adapters/storage/sqlite"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/config"
	"github.com/hylla/sectboard/internal/domain"
	"github.com/hylla/sectboard/internal/platform"
	"github.com/hylla/sectboard/internal/tui"
	"github.com/spf13/cobra"
)

var version = "dev"

type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, newRootCommand(os.Stdout, os.Stderr), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes the command tree without fang's styled error output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	dbPath      string
	appName     string
	devMode     bool
	fixturePath string
	watch       bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	opts := &rootOptions{appName: platform.DefaultAppName, devMode: version == "dev"}
	if envDev, ok := parseBoolEnv("SECTBOARD_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("SECTBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:   "sectboard",
		Short: "Browse and edit proposal document sections",
		Long: `sectboard shows the sections of a proposal document as a sortable,
filterable, paginated table. Rows can be selected, reordered, edited inline or
in a detail editor, and deleted. Without a subcommand it starts the TUI.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), opts, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML (env "+platform.EnvConfigPath+")")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database (env "+platform.EnvDBPath+")")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.fixturePath, "fixture", "", "use a YAML or JSON fixture file instead of sqlite")
	flags.BoolVar(&opts.watch, "watch", false, "reload the table when the fixture file changes")

	root.AddCommand(
		newServeCommand(opts, stderr),
		newViewCommand(opts, stdout, stderr),
		newExportCommand(opts, stdout, stderr),
		newImportCommand(opts, stderr),
		newPathsCommand(opts, stdout),
	)
	return root
}

func resolvePaths(opts *rootOptions) (platform.Paths, error) {
	return platform.Resolve(platform.Options{
		AppName:     opts.appName,
		DevMode:     opts.devMode,
		ConfigPath:  opts.configPath,
		DBPath:      opts.dbPath,
		FixturePath: opts.fixturePath,
	})
}

// session is one opened table plus the collaborators behind it.
type session struct {
	cfg     config.Config
	logger  *runtimeLogger
	table   *app.Table
	changes app.ChangeLog
	// store is set on the fixture backend.
	store   *fixture.Store
	closers []func() error
}

// openSession loads config, configures logging, opens storage, and loads the
// table. quiet mutes console logging for commands that own the terminal.
func openSession(ctx context.Context, opts *rootOptions, command string, quiet bool, stderr io.Writer) (*session, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", paths.ConfigPath, err)
	}
	if paths.DBPinned {
		cfg.Database.Path = paths.DBPath
	}
	if fixturePath := strings.TrimSpace(opts.fixturePath); fixturePath != "" {
		cfg.Storage.Backend = config.BackendFixture
		cfg.Storage.FixturePath = fixturePath
	}
	if opts.watch {
		cfg.Storage.Watch = true
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if quiet {
		logger.SetConsoleEnabled(false)
	}
	s := &session{cfg: cfg, logger: logger}
	s.closers = append(s.closers, logger.Close)

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", paths.ConfigPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	persist, err := s.openStorage(ctx)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	schema, err := cfg.Schema()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("build schema: %w", err)
	}
	variant, err := app.ParseVariant(cfg.Table.Variant)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("parse table variant: %w", err)
	}
	s.table = app.NewTable(persist, uuid.NewString, nil, app.TableConfig{Schema: schema, Variant: variant})
	s.table.OnMutation(logger.logMutation)
	if err := s.table.Load(ctx); err != nil {
		logger.Error("table load failed", "err", err)
		_ = s.Close()
		return nil, err
	}
	logger.Info("table loaded", "records", s.table.Len(), "variant", variant)
	return s, nil
}

// openStorage opens the configured backend and returns it as the table's
// persistence collaborator.
func (s *session) openStorage(ctx context.Context) (app.Persistence, error) {
	logger := s.logger
	switch s.cfg.Storage.Backend {
	case config.BackendFixture:
		path := s.cfg.Storage.FixturePath
		logger.Info("opening fixture store", "path", path, "seed", s.cfg.Storage.Seed)
		store, err := fixture.Open(fixture.Options{
			Path:      path,
			WriteBack: strings.TrimSpace(path) != "",
			Seed:      s.cfg.Storage.Seed,
		})
		if err != nil {
			logger.Error("fixture open failed", "path", path, "err", err)
			return nil, fmt.Errorf("open fixture store: %w", err)
		}
		s.store = store
		s.changes = store
		return store, nil
	default:
		path := s.cfg.Database.Path
		logger.Info("opening sqlite repository", "db_path", path)
		repo, err := sqlite.Open(path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		s.changes = repo
		if s.cfg.Storage.Seed {
			count, err := repo.Count(ctx)
			if err != nil {
				return nil, fmt.Errorf("count sqlite records: %w", err)
			}
			if count == 0 {
				if err := repo.ReplaceAll(ctx, fixture.Sample()); err != nil {
					return nil, fmt.Errorf("seed sqlite repository: %w", err)
				}
				logger.Info("sqlite repository seeded", "records", len(fixture.Sample()))
			}
		}
		logger.Info("sqlite repository ready", "db_path", path, "migrations", "ensured")
		return repo, nil
	}
}

// Close releases storage and log sinks in reverse open order.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *session) closeQuietly(stderr io.Writer) {
	if err := s.Close(); err != nil && s.logger.consoleActive() {
		_, _ = fmt.Fprintf(stderr, "warning: close session: %v\n", err)
	}
}

// runBoard starts the interactive table.
func runBoard(ctx context.Context, opts *rootOptions, stderr io.Writer) error {
	s, err := openSession(ctx, opts, "tui", true, stderr)
	if err != nil {
		return err
	}
	defer s.closeQuietly(stderr)

	tuiOpts, err := s.tuiOptions()
	if err != nil {
		return err
	}
	if s.store != nil && s.cfg.Storage.Watch && s.store.Path() != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		changes, err := s.store.Watch(watchCtx, fixture.DefaultDebounce)
		if err != nil {
			s.logger.Warn("fixture watch unavailable", "path", s.store.Path(), "err", err)
		} else {
			s.logger.Info("watching fixture for changes", "path", s.store.Path())
			tuiOpts = append(tuiOpts, tui.WithExternalChanges(changes))
		}
	}

	s.logger.Info("starting tui program loop")
	if _, err := programFactory(tui.NewModel(s.table, tuiOpts...)).Run(); err != nil {
		s.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	s.logger.Info("command flow complete", "command", "tui")
	return nil
}

// tuiOptions maps config onto TUI options.
func (s *session) tuiOptions() ([]tui.Option, error) {
	cfg := s.cfg
	columns, err := cfg.Columns()
	if err != nil {
		return nil, fmt.Errorf("resolve visible columns: %w", err)
	}
	id := cfg.Identity
	return []tui.Option{
		tui.WithPageSizes(cfg.Table.PageSizes, cfg.Table.PageSize),
		tui.WithVisibleColumns(columns),
		tui.WithReviewers(cfg.Table.Reviewers),
		tui.WithSaveDelays(cfg.Saves.InlineDelay.Duration, cfg.Saves.DetailDelay.Duration),
		tui.WithProfile(tui.Profile{
			Name:          id.Name(),
			Email:         id.Email,
			Phone:         id.Phone,
			Avatar:        id.Avatar,
			Role:          id.Role,
			EmailVerified: id.EmailVerified,
			PhoneVerified: id.PhoneVerified,
			TwoFactor:     id.TwoFactor,
		}),
		tui.WithKeyConfig(tui.KeyConfig{
			Search:    cfg.Keys.Search,
			Select:    cfg.Keys.Select,
			SelectAll: cfg.Keys.SelectAll,
			Drag:      cfg.Keys.Drag,
			Copy:      cfg.Keys.Copy,
			Refresh:   cfg.Keys.Refresh,
			Columns:   cfg.Keys.Columns,
		}),
		tui.WithLogger(s.logger),
	}, nil
}

// localActor attributes CLI mutations to the configured identity.
func (s *session) localActor() app.MutationActor {
	actorID := strings.TrimSpace(s.cfg.Identity.ActorID)
	if actorID == "" {
		actorID = "local"
	}
	return app.MutationActor{ActorID: actorID, ActorType: domain.ActorTypeUser}
}

func newPathsCommand(opts *rootOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, err := resolvePaths(opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "fixture: %s\n", paths.FixturePath)
			return nil
		},
	}
}
