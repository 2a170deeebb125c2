// Package mcp exposes the protocol catalog and runner as MCP tools so
// agents can browse and run protocols.
package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
)

// Handlers implements the labrun MCP tools over one service.
type Handlers struct {
	Service client.Service
	Logger  *log.Logger
	// TickInterval is the progress cadence of runs started by agents.
	TickInterval time.Duration
}

// NewServer creates a new MCP server with labrun tools registered.
func NewServer(version string, h *Handlers) *server.MCPServer {
	if h.Logger == nil {
		h.Logger = log.Nop()
	}
	s := server.NewMCPServer(
		"labrun",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("protocols_list",
			mcp.WithDescription("List lab protocols in the catalog, optionally filtered"),
			mcp.WithString("query", mcp.Description("Case-insensitive text matched against name, description and tags")),
			mcp.WithString("tag", mcp.Description("Only protocols carrying this exact tag")),
			mcp.WithString("where", mcp.Description(`Filter expression, e.g. "plates" in tags && param_count > 2`)),
		),
		h.HandleList,
	)

	s.AddTool(
		mcp.NewTool("protocol_get",
			mcp.WithDescription("Get one protocol with its parameter schema and form fields"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Protocol id")),
		),
		h.HandleGet,
	)

	s.AddTool(
		mcp.NewTool("protocol_run",
			mcp.WithDescription("Run a protocol (defaults to simulation mode for safety)"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Protocol id")),
			mcp.WithObject("params", mcp.Description("Parameter values; omitted parameters take their schema defaults")),
			mcp.WithBoolean("simulate", mcp.Description("Simulate without hardware (default true)")),
		),
		h.HandleRun,
	)

	s.AddTool(
		mcp.NewTool("catalog_validate",
			mcp.WithDescription("Validate a catalog YAML or JSON file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the catalog file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("schema",
			mcp.WithDescription("Export a labrun JSON Schema"),
			mcp.WithString("type", mcp.Required(), mcp.Description("Schema type: 'protocol', 'result' or 'catalog'")),
		),
		HandleSchema,
	)

	return s
}
