// Package mcp implements the external-tool client transport: for each
// configured server, spawn its command, exchange JSON-RPC 2.0 over stdio
// (initialize, tools/list), and route tools/call. Discovered tools are
// exposed to the agent loop namespaced "<server>.<tool>" and dispatched
// uniformly alongside native tools. There is no health-check/reconnect
// loop; servers that fail to initialize are logged and skipped rather
// than retried.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	llm "github.com/lowkaihon/pilot/internal/llmclient"
	"github.com/lowkaihon/pilot/internal/log"
)

// ServerConfig is one profiles.<name>.mcp_servers[] entry.
type ServerConfig struct {
	Name    string
	Command []string
	Env     map[string]string
}

type connectedServer struct {
	name   string
	client *mcpclient.Client
	tools  map[string]mcpgo.Tool // bare tool name -> schema
}

// Manager holds the live connections to every configured MCP server and
// dispatches namespaced tool calls to them.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*connectedServer
}

// NewManager returns an empty Manager; call Start to connect servers.
func NewManager() *Manager {
	return &Manager{servers: make(map[string]*connectedServer)}
}

// Start connects every configured server concurrently. A server that fails to
// initialize is skipped with a warning through internal/log, which reaches
// standard error only under --verbose — Start itself never returns an
// error for a single bad server.
func (m *Manager) Start(ctx context.Context, servers []ServerConfig) {
	var wg sync.WaitGroup
	for _, cfg := range servers {
		wg.Add(1)
		go func(cfg ServerConfig) {
			defer wg.Done()
			if err := m.connect(ctx, cfg); err != nil {
				log.Warn("mcp server failed to initialize, skipping", "server", cfg.Name, "error", err)
			}
		}(cfg)
	}
	wg.Wait()
}

func (m *Manager) connect(ctx context.Context, cfg ServerConfig) error {
	if len(cfg.Command) == 0 {
		return fmt.Errorf("empty command")
	}
	var envSlice []string
	for k, v := range cfg.Env {
		envSlice = append(envSlice, fmt.Sprintf("%s=%s", k, v))
	}

	client, err := mcpclient.NewStdioMCPClient(cfg.Command[0], envSlice, cfg.Command[1:]...)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "pilot", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listed, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("tools/list: %w", err)
	}

	cs := &connectedServer{name: cfg.Name, client: client, tools: make(map[string]mcpgo.Tool)}
	for _, t := range listed.Tools {
		cs.tools[t.Name] = t
	}

	m.mu.Lock()
	m.servers[cfg.Name] = cs
	m.mu.Unlock()

	log.Info("mcp server connected", "server", cfg.Name, "tools", len(cs.tools))
	return nil
}

// Close shuts down every connected server.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cs := range m.servers {
		_ = cs.client.Close()
	}
	m.servers = make(map[string]*connectedServer)
}

// Namespace returns "<server>.<tool>", the naming scheme used for
// discovered MCP tools.
func Namespace(server, tool string) string {
	return server + "." + tool
}

// Split reverses Namespace. ok is false if name has no server prefix.
func Split(name string) (server, tool string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}

// IsNamespaced reports whether name is a "<server>.<tool>" reference to a
// currently connected server (used by the agent loop to route a tool call
// to Call instead of the native registry).
func (m *Manager) IsNamespaced(name string) bool {
	server, _, ok := Split(name)
	if !ok {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.servers[server]
	return exists
}

// Definitions returns the namespaced tool schemas for every connected
// server, to be unioned with the native tool registry's definitions
// before each model call.
func (m *Manager) Definitions() []llm.ToolDef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var defs []llm.ToolDef
	for _, cs := range m.servers {
		for _, t := range cs.tools {
			schema, _ := json.Marshal(t.InputSchema)
			defs = append(defs, llm.ToolDef{
				Type: "function",
				Function: llm.FunctionDef{
					Name:        Namespace(cs.name, t.Name),
					Description: t.Description,
					Parameters:  schema,
				},
			})
		}
	}
	return defs
}

// Call dispatches a namespaced tool call via tools/call.
func (m *Manager) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	server, tool, ok := Split(name)
	if !ok {
		return "", fmt.Errorf("not a namespaced tool: %s", name)
	}
	m.mu.RLock()
	cs, exists := m.servers[server]
	m.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("mcp server %q not connected", server)
	}

	var argMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argMap); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = argMap

	result, err := cs.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("tools/call %s: %w", name, err)
	}
	return renderResult(result), nil
}

func renderResult(result *mcpgo.CallToolResult) string {
	if result == nil {
		return ""
	}
	var sb []byte
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			if len(sb) > 0 {
				sb = append(sb, '\n')
			}
			sb = append(sb, []byte(tc.Text)...)
		}
	}
	out := string(sb)
	if result.IsError {
		return "Error: " + out
	}
	return out
}
