package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sisilabsai/thesignal/internal/config"
	"github.com/sisilabsai/thesignal/internal/ops"
	"github.com/sisilabsai/thesignal/internal/store"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// tools lists every tool in registration order. Names come from the
// definitions.
var tools = []toolEntry{
	{ingestToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleIngest }},
	{fetchToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch }},
	{listToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleList }},
	{authorFetchToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuthor }},
	{authorListToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleAuthors }},
	{overviewToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleOverview }},
	{trustedListToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrusted }},
}

// instructions is sent to clients on initialize.
const instructions = `Tools over a store of signed excerpts. Each record attests that the ` +
	`holder of an Ed25519 key vouched for a quoted excerpt of a web page. ` +
	`signature_ingest verifies and stores a submission; the other tools are read-only.`

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(tools))
	for _, entry := range tools {
		names = append(names, entry.def.Name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the names that match no tool.
func ValidateDisabledTools(names []string) []string {
	known := make(map[string]bool, len(tools))
	for _, entry := range tools {
		known[entry.def.Name] = true
	}
	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the signature tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(s store.Backend, ing *ops.Ingester, cfg *config.Config, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"thesignal",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	h := NewHandlers(s, ing)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for _, entry := range tools {
		if disabled[entry.def.Name] {
			continue
		}
		srv.AddTool(entry.def, entry.handler(h))
	}

	return srv
}

// Run starts the MCP server using stdio transport.
func Run(s store.Backend, ing *ops.Ingester, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(s, ing, cfg, version))
}
