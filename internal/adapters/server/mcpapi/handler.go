// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/sectboard/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the table tools.
func NewHandler(cfg Config, table common.TableService) (*Handler, error) {
	if table == nil {
		return nil, fmt.Errorf("table service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerViewTools(mcpSrv, table)
	registerMutationTools(mcpSrv, table)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "sectboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerViewTools registers the read-only `sectboard.view` and `sectboard.get_record` tools.
func registerViewTools(srv *mcpserver.MCPServer, table common.TableService) {
	srv.AddTool(
		mcp.NewTool(
			"sectboard.view",
			mcp.WithDescription("Return one filtered, sorted page of proposal sections."),
			mcp.WithString("q", mcp.Description("Case-insensitive search over header, type, status, reviewer, description, and tags")),
			mcp.WithString("sort", mcp.Description("Sort field, e.g. header, status, due_date")),
			mcp.WithString("dir", mcp.Description("asc or desc"), mcp.Enum("asc", "desc")),
			mcp.WithNumber("page", mcp.Description("Zero-based page index")),
			mcp.WithNumber("page_size", mcp.Description("Rows per page")),
			mcp.WithObject("filters", mcp.Description("Map of field name to accepted values")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Q        string              `json:"q"`
				Sort     string              `json:"sort"`
				Dir      string              `json:"dir"`
				Page     int                 `json:"page"`
				PageSize int                 `json:"page_size"`
				Filters  map[string][]string `json:"filters"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			view, err := table.View(ctx, common.ViewRequest{
				Search:   args.Q,
				Sort:     args.Sort,
				Dir:      args.Dir,
				Page:     args.Page,
				PageSize: args.PageSize,
				Filters:  args.Filters,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(view)
			if err != nil {
				return nil, fmt.Errorf("encode view result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sectboard.get_record",
			mcp.WithDescription("Return one section by id."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Section id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			rec, err := table.GetRecord(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(rec)
			if err != nil {
				return nil, fmt.Errorf("encode get_record result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMutationTools registers the edit, reorder, and delete tools.
func registerMutationTools(srv *mcpserver.MCPServer, table common.TableService) {
	srv.AddTool(
		mcp.NewTool(
			"sectboard.update_fields",
			mcp.WithDescription("Update one or more fields of a section. Tags are comma separated."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Section id")),
			mcp.WithObject("fields", mcp.Required(), mcp.Description("Map of field name to new value")),
			mcp.WithString("actor_id", mcp.Description("Caller identity recorded in the change feed")),
			mcp.WithString("actor_type", mcp.Description("user|agent|system"), mcp.Enum("user", "agent", "system")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				ID        int               `json:"id"`
				Fields    map[string]string `json:"fields"`
				ActorID   string            `json:"actor_id"`
				ActorType string            `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if args.ID <= 0 {
				return mcp.NewToolResultError(`invalid_request: required argument "id" not found`), nil
			}
			rec, err := table.UpdateFields(ctx, common.UpdateFieldsRequest{
				ID:         args.ID,
				Fields:     args.Fields,
				ActorInput: common.ActorInput{ActorID: args.ActorID, ActorType: args.ActorType},
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(rec)
			if err != nil {
				return nil, fmt.Errorf("encode update_fields result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sectboard.reorder",
			mcp.WithDescription("Replace the canonical section order. The order must list every section id exactly once."),
			mcp.WithArray("order", mcp.Required(), mcp.Description("Section ids in their new order"), mcp.WithNumberItems()),
			mcp.WithString("actor_id", mcp.Description("Caller identity recorded in the change feed")),
			mcp.WithString("actor_type", mcp.Description("user|agent|system"), mcp.Enum("user", "agent", "system")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Order     []int  `json:"order"`
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			out, err := table.Reorder(ctx, common.ReorderRequest{
				Order:      args.Order,
				ActorInput: common.ActorInput{ActorID: args.ActorID, ActorType: args.ActorType},
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode reorder result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sectboard.move_record",
			mcp.WithDescription("Move one section to a zero-based position of the canonical order."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Section id")),
			mcp.WithNumber("to_index", mcp.Required(), mcp.Description("Destination index")),
			mcp.WithString("actor_id", mcp.Description("Caller identity recorded in the change feed")),
			mcp.WithString("actor_type", mcp.Description("user|agent|system"), mcp.Enum("user", "agent", "system")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireInt("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			toIndex, err := req.RequireInt("to_index")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			out, err := table.MoveRecord(ctx, common.MoveRecordRequest{
				ID:      id,
				ToIndex: toIndex,
				ActorInput: common.ActorInput{
					ActorID:   req.GetString("actor_id", ""),
					ActorType: req.GetString("actor_type", ""),
				},
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode move_record result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"sectboard.delete_records",
			mcp.WithDescription("Delete sections by id. Unknown ids are ignored."),
			mcp.WithArray("ids", mcp.Required(), mcp.Description("Section ids to delete"), mcp.WithNumberItems()),
			mcp.WithString("actor_id", mcp.Description("Caller identity recorded in the change feed")),
			mcp.WithString("actor_type", mcp.Description("user|agent|system"), mcp.Enum("user", "agent", "system")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				IDs       []int  `json:"ids"`
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			out, err := table.DeleteRecords(ctx, common.DeleteRecordsRequest{
				IDs:        args.IDs,
				ActorInput: common.ActorInput{ActorID: args.ActorID, ActorType: args.ActorType},
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode delete_records result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult wraps argument-binding failures as deterministic tool errors.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
