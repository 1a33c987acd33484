// Package mcp exposes the lead admin operations as MCP tools over stdio.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/qualify"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"lead_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"lead_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"lead_stats": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
	},
	"lead_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"lead_score": {
		def:     scoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScore },
	},
}

// AllToolNames returns the sorted names of every tool.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the lead tools registered.
// Tools listed in cfg.DisabledTools are excluded. A nil engine scores with
// the local rubric.
func NewServer(store lead.Repository, cfg *config.Config, engine *qualify.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"siftly",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, cfg, engine)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store lead.Repository, cfg *config.Config, engine *qualify.Engine, version string) error {
	return server.ServeStdio(NewServer(store, cfg, engine, version))
}
