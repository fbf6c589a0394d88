// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/nudger/internal/adapters/server/common"
	"github.com/hylla/nudger/internal/domain"
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

// NewHandler builds one stateless MCP adapter exposing the nudge tools.
func NewHandler(cfg Config, nudges common.NudgeService) (*Handler, error) {
	if nudges == nil {
		return nil, fmt.Errorf("nudge service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerListTools(mcpSrv, nudges)
	registerSnoozeTools(mcpSrv, nudges)

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
		cfg.ServerName = "nudger"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// nudgeTypeNames lists nudge type values for tool enums.
func nudgeTypeNames() []string {
	descriptors := domain.TypeDescriptors()
	out := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, string(d.Type))
	}
	return out
}

// snoozePresetNames lists snooze preset names for tool descriptions.
func snoozePresetNames() []string {
	presets := domain.SnoozePresets()
	out := make([]string, 0, len(presets))
	for _, p := range presets {
		out = append(out, p.Name)
	}
	return out
}

// registerListTools registers the read-side `nudger.*` tools.
func registerListTools(srv *mcpserver.MCPServer, nudges common.NudgeService) {
	srv.AddTool(
		mcp.NewTool(
			"nudger.list_nudges",
			mcp.WithDescription("Return the ranked nudge worklist with per-priority counts."),
			mcp.WithString("type", mcp.Description("Filter by nudge type"), mcp.Enum(nudgeTypeNames()...)),
			mcp.WithString("priority", mcp.Description("Filter by priority"), mcp.Enum("high", "medium", "low")),
			mcp.WithNumber("limit", mcp.Description("Maximum nudges to return (0 returns all)")),
			mcp.WithBoolean("refresh", mcp.Description("Fetch every source before reading")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			list, err := nudges.ListNudges(ctx, common.ListNudgesRequest{
				Type:     req.GetString("type", ""),
				Priority: req.GetString("priority", ""),
				Limit:    req.GetInt("limit", 0),
				Refresh:  req.GetBool("refresh", false),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(list)
			if err != nil {
				return nil, fmt.Errorf("encode list_nudges result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"nudger.summary",
			mcp.WithDescription("Return nudge counts per priority bucket."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			summary, err := nudges.Summary(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(summary)
			if err != nil {
				return nil, fmt.Errorf("encode summary result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"nudger.refresh",
			mcp.WithDescription("Fetch every source and regenerate the worklist."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			list, err := nudges.Refresh(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(list)
			if err != nil {
				return nil, fmt.Errorf("encode refresh result: %w", err)
			}
			return result, nil
		},
	)
}

// registerSnoozeTools registers the suppression `nudger.*` tools.
func registerSnoozeTools(srv *mcpserver.MCPServer, nudges common.NudgeService) {
	srv.AddTool(
		mcp.NewTool(
			"nudger.snooze_nudge",
			mcp.WithDescription("Hide one nudge until a snooze duration elapses."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Nudge id")),
			mcp.WithString("duration", mcp.Description(
				"Preset ("+strings.Join(snoozePresetNames(), ", ")+") or Go duration; defaults to the configured snooze",
			)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			out, err := nudges.SnoozeNudge(ctx, common.SnoozeRequest{
				ID:       id,
				Duration: req.GetString("duration", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode snooze_nudge result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"nudger.dismiss_nudge",
			mcp.WithDescription("Hide one nudge indefinitely."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Nudge id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			out, err := nudges.DismissNudge(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(out)
			if err != nil {
				return nil, fmt.Errorf("encode dismiss_nudge result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"nudger.list_snoozes",
			mcp.WithDescription("List persisted snooze entries with their current state."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			snoozes, err := nudges.ListSnoozes(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"snoozes": snoozes,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_snoozes result: %w", err)
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
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
