package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/sectboard/internal/adapters/server"
	"github.com/hylla/sectboard/internal/adapters/server/common"
	"github.com/hylla/sectboard/internal/app"
	"github.com/hylla/sectboard/internal/domain"
	"github.com/hylla/sectboard/internal/report"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the table over HTTP and MCP",
		Long: `serve exposes the section table as a JSON API and as MCP tools on one
listener. Mutations from the API are attributed to users, MCP calls to agents.`,
		Example: `  sectboard serve
  sectboard serve --bind 127.0.0.1:9090 --fixture ./sections.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, "serve", false, stderr)
			if err != nil {
				return err
			}
			defer s.closeQuietly(stderr)
			return runServe(ctx, s, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (default from [server].http_bind)")
	return cmd
}

func runServe(ctx context.Context, s *session, bind string) error {
	cfg := s.cfg.Server
	if strings.TrimSpace(bind) != "" {
		cfg.HTTPBind = bind
	}
	user := s.localActor()
	if user.ActorID == "local" {
		user.ActorID = "http"
	}
	deps := server.Dependencies{
		API:    common.NewAppServiceAdapter(s.table, s.changes, user),
		MCP:    common.NewAppServiceAdapter(s.table, s.changes, app.MutationActor{ActorID: "mcp", ActorType: domain.ActorTypeAgent}),
		Logger: s.logger,
	}
	s.logger.Info("command flow start", "command", "serve", "bind", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
	err := server.Run(ctx, server.Config{
		HTTPBind:      cfg.HTTPBind,
		APIEndpoint:   cfg.APIEndpoint,
		MCPEndpoint:   cfg.MCPEndpoint,
		ServerName:    "sectboard",
		ServerVersion: version,
	}, deps)
	if err != nil {
		s.logger.Error("command flow failed", "command", "serve", "err", err)
		return fmt.Errorf("run server: %w", err)
	}
	s.logger.Info("command flow complete", "command", "serve")
	return nil
}

// viewOptions are the flags of the view command. Page is one-based.
type viewOptions struct {
	search   string
	sortBy   string
	dir      string
	page     int
	pageSize int
	filters  []string
	columns  []string
	changes  int
	plain    bool
	width    int
}

func newViewCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	vo := &viewOptions{}
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print one page of the table",
		Long:  `view prints a filtered, sorted page of sections, or the change feed with --changes.`,
		Example: `  sectboard view --sort status --dir desc
  sectboard view -q budget --filter status=Done,"In Process" --page 2
  sectboard view --changes 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, "view", true, stderr)
			if err != nil {
				return err
			}
			defer s.closeQuietly(stderr)
			return runView(ctx, s, vo, stdout)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&vo.search, "query", "q", "", "global search text")
	flags.StringVar(&vo.sortBy, "sort", "", "sort column")
	flags.StringVar(&vo.dir, "dir", "asc", "sort direction (asc|desc)")
	flags.IntVar(&vo.page, "page", 1, "page number")
	flags.IntVar(&vo.pageSize, "page-size", app.DefaultPageSize, "rows per page")
	flags.StringArrayVar(&vo.filters, "filter", nil, "column filter as field=value[,value...]; repeatable")
	flags.StringSliceVar(&vo.columns, "columns", nil, "columns to print")
	flags.IntVar(&vo.changes, "changes", 0, "print the newest N change events instead of records")
	flags.BoolVar(&vo.plain, "plain", false, "print without colors")
	flags.IntVar(&vo.width, "width", 0, "table width (0 fits content)")
	return cmd
}

func runView(ctx context.Context, s *session, vo *viewOptions, stdout io.Writer) error {
	opts := report.Options{Now: time.Now(), Width: vo.width, Plain: vo.plain}
	if vo.changes > 0 {
		if s.changes == nil {
			return fmt.Errorf("change feed unavailable")
		}
		events, err := s.changes.ListChangeEvents(ctx, vo.changes)
		if err != nil {
			return fmt.Errorf("list change events: %w", err)
		}
		return report.Changes(stdout, events, opts)
	}

	vs, err := vo.viewState()
	if err != nil {
		return err
	}
	for _, raw := range vo.columns {
		field, err := domain.ParseField(raw)
		if err != nil {
			return fmt.Errorf("parse --columns: %w", err)
		}
		opts.Columns = append(opts.Columns, field)
	}
	if len(opts.Columns) == 0 && s.table.Variant() == app.VariantCompact {
		opts.Columns = s.table.Variant().Columns()
	}
	return report.Sections(stdout, s.table.View(vs), s.table.Len(), opts)
}

// viewState translates flags into a view state.
func (vo *viewOptions) viewState() (app.ViewState, error) {
	vs := app.NewViewState()
	if raw := strings.TrimSpace(vo.sortBy); raw != "" {
		field, err := domain.ParseField(raw)
		if err != nil {
			return app.ViewState{}, fmt.Errorf("parse --sort: %w", err)
		}
		dir, err := app.ParseSortDirection(vo.dir)
		if err != nil {
			return app.ViewState{}, fmt.Errorf("parse --dir: %w", err)
		}
		vs.SortKey = field
		vs.SortDirection = dir
	}
	for _, raw := range vo.filters {
		name, values, ok := strings.Cut(raw, "=")
		if !ok {
			return app.ViewState{}, fmt.Errorf("parse --filter %q: want field=value[,value...]", raw)
		}
		field, err := domain.ParseField(name)
		if err != nil {
			return app.ViewState{}, fmt.Errorf("parse --filter %q: %w", raw, err)
		}
		accepted := []string{}
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				accepted = append(accepted, v)
			}
		}
		vs = vs.WithFilter(field, accepted...)
	}
	if vo.pageSize <= 0 || vo.pageSize > app.MaxPageSize {
		return app.ViewState{}, fmt.Errorf("--page-size must be between 1 and %d", app.MaxPageSize)
	}
	if vo.page < 1 {
		return app.ViewState{}, fmt.Errorf("--page must be >= 1")
	}
	return vs.WithPageSize(vo.pageSize).WithSearch(vo.search).WithPage(vo.page - 1), nil
}

func newExportCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the table as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), opts, "export", false, stderr)
			if err != nil {
				return err
			}
			defer s.closeQuietly(stderr)
			s.logger.Info("command flow start", "command", "export")
			if err := runExport(s.table, outPath, stdout); err != nil {
				s.logger.Error("command flow failed", "command", "export", "err", err)
				return fmt.Errorf("run export command: %w", err)
			}
			s.logger.Info("command flow complete", "command", "export")
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func runExport(table *app.Table, outPath string, stdout io.Writer) error {
	encoded, err := json.MarshalIndent(table.ExportSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" || outPath == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func newImportCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert records from a JSON snapshot",
		Long: `import inserts or updates every snapshot record and moves them to the
front of the table in snapshot order. Records missing from the snapshot are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			s, err := openSession(cmd.Context(), opts, "import", false, stderr)
			if err != nil {
				return err
			}
			defer s.closeQuietly(stderr)
			s.logger.Info("command flow start", "command", "import", "in", inPath)
			ctx := app.WithMutationActor(cmd.Context(), s.localActor())
			if err := runImport(ctx, s.table, inPath); err != nil {
				s.logger.Error("command flow failed", "command", "import", "err", err)
				return fmt.Errorf("run import command: %w", err)
			}
			s.logger.Info("command flow complete", "command", "import", "records", s.table.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

func runImport(ctx context.Context, table *app.Table, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := table.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}
