// Package server mounts the REST API and MCP transports on one listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/sectboard/internal/adapters/server/common"
	"github.com/hylla/sectboard/internal/adapters/server/httpapi"
	"github.com/hylla/sectboard/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress  = "127.0.0.1:8080"
	defaultAPIEndpoint  = "/api/v1"
	defaultMCPEndpoint  = "/mcp"
	readHeaderTimeout   = 10 * time.Second
	shutdownGracePeriod = 5 * time.Second
)

// Config holds the listen address and mount points of serve mode.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
}

// Logger receives one event per served request.
type Logger interface {
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

// Dependencies are the table services behind each transport. MCP falls back
// to API when nil; callers usually pass one adapter attributed to users and
// another attributed to agents. Logger is optional.
type Dependencies struct {
	API    common.TableService
	MCP    common.TableService
	Logger Logger
}

// NewHandler builds the root mux with liveness, readiness, REST, and MCP
// routes, and returns the config with defaults applied.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.API == nil {
		return nil, Config{}, fmt.Errorf("table service dependency is required")
	}
	agentTable := deps.MCP
	if agentTable == nil {
		agentTable = deps.API
	}

	mcpHandler, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, agentTable)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.API))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/readyz", readiness(deps.API))
	mux.Handle(cfg.MCPEndpoint, mcpHandler)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)

	if deps.Logger == nil {
		return mux, cfg, nil
	}
	return logRequests(mux, deps.Logger), cfg, nil
}

// Run serves on cfg.HTTPBind until ctx is canceled.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	return RunWithListener(ctx, nil, cfg, deps)
}

// RunWithListener serves on ln, or on cfg.HTTPBind when ln is nil, and shuts
// down gracefully once ctx is canceled.
func RunWithListener(ctx context.Context, ln net.Listener, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPBind,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	served := make(chan error, 1)
	go func() {
		if ln != nil {
			served <- srv.Serve(ln)
			return
		}
		served <- srv.ListenAndServe()
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	serveErr := <-served
	if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve after shutdown: %w", serveErr)
	}
	return nil
}

// normalizeConfig fills defaults and rejects colliding mount points.
func normalizeConfig(cfg Config) (Config, error) {
	if cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind); cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}
	cfg.APIEndpoint = mountPath(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = mountPath(cfg.MCPEndpoint, defaultMCPEndpoint)
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ")
	}
	if cfg.ServerName = strings.TrimSpace(cfg.ServerName); cfg.ServerName == "" {
		cfg.ServerName = "sectboard"
	}
	if cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion); cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// mountPath returns path as "/a/b" with no trailing slash; blank or root
// paths fall back.
func mountPath(path, fallback string) string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	if path == "/" {
		return fallback
	}
	return path
}

// readiness reports ready once the table answers a one-row view.
func readiness(table common.TableService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := table.View(r.Context(), common.ViewRequest{PageSize: 1})
		if err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
		writeStatus(w, http.StatusOK, map[string]any{"status": "ok", "records": res.TotalRecords})
	}
}

func writeStatus(w http.ResponseWriter, code int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush keeps streaming MCP responses working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		keyvals := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start).Round(time.Microsecond)}
		if rec.status >= http.StatusInternalServerError {
			logger.Warn("request failed", keyvals...)
			return
		}
		logger.Info("request served", keyvals...)
	})
}
