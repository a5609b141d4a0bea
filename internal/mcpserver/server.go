// Package mcpserver exposes the native tool registry as an MCP server over
// stdio (the `--mcp` flag), so another MCP-speaking agent can drive
// pilot's file/search/bash tools directly. Uses the server-side half of
// the same mcp-go library the internal/mcp client is built on.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/lowkaihon/pilot/internal/tools"
)

// Serve builds an MCP server exposing every tool in registry and blocks
// serving it over stdio until the connection closes or ctx is cancelled.
func Serve(ctx context.Context, registry *tools.Registry, name, version string) error {
	s := mcpserver.NewMCPServer(name, version)

	for _, def := range registry.Definitions() {
		toolName := def.Function.Name
		if toolName == "recall" {
			// recall only makes sense against pilot's own in-process
			// history; it has no meaning for an external MCP client.
			continue
		}
		tool := mcpgo.NewToolWithRawSchema(toolName, def.Function.Description, def.Function.Parameters)
		s.AddTool(tool, handlerFor(registry, toolName))
	}

	return mcpserver.ServeStdio(s)
}

func handlerFor(registry *tools.Registry, name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		args, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return mcpgo.NewToolResultError(fmt.Sprintf("encode arguments: %s", err)), nil
		}
		out, err := registry.Execute(ctx, name, args)
		if err != nil {
			// There is no interactive approval surface over stdio; the
			// client's call is the consent, so apply directly.
			if confirm, ok := err.(*tools.NeedsConfirmation); ok {
				out, err = confirm.Execute()
				if err != nil {
					return mcpgo.NewToolResultError(err.Error()), nil
				}
				return mcpgo.NewToolResultText(out), nil
			}
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return mcpgo.NewToolResultText(out), nil
	}
}
