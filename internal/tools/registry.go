// ABOUTME: Registry of tools exposed by a connected MCP server
// ABOUTME: Lists tools once, then calls them by name for directive resolution
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// ErrUnknownTool is returned when calling a tool the server never listed
var ErrUnknownTool = errors.New("unknown tool")

// Caller is the MCP client surface the registry needs; *client.Client implements it
type Caller interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Registry caches the tool list of one MCP server
type Registry struct {
	caller Caller
	closer func() error
	logger zerolog.Logger

	mu    sync.RWMutex
	tools map[string]mcp.Tool
}

// NewRegistry wraps an initialized MCP client
func NewRegistry(caller Caller, logger zerolog.Logger) *Registry {
	return &Registry{
		caller: caller,
		logger: logger.With().Str("component", "tools").Logger(),
		tools:  make(map[string]mcp.Tool),
	}
}

// Dial connects to an MCP server over SSE and loads its tools
func Dial(ctx context.Context, url, version string, logger zerolog.Logger) (*Registry, error) {
	c, err := client.NewSSEMCPClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return Start(ctx, c, version, logger)
}

// Start initializes c, loads its tool list, and takes ownership of it
func Start(ctx context.Context, c *client.Client, version string, logger zerolog.Logger) (*Registry, error) {
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "copilot", Version: version}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	r := NewRegistry(c, logger)
	r.closer = c.Close
	if err := r.Refresh(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return r, nil
}

// Refresh reloads the tool list
func (r *Registry) Refresh(ctx context.Context) error {
	res, err := r.caller.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make(map[string]mcp.Tool, len(res.Tools))
	for _, t := range res.Tools {
		tools[t.Name] = t
	}

	r.mu.Lock()
	r.tools = tools
	r.mu.Unlock()

	r.logger.Debug().Int("count", len(tools)).Msg("tool list refreshed")
	return nil
}

// Has reports whether name is a registered tool
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Tools returns the registered tools sorted by name
func (r *Registry) Tools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call invokes a registered tool and returns its text output
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if !r.Has(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := r.caller.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("tool %s failed: %w", name, err)
	}

	text := ResultText(res)
	if res.IsError {
		return "", fmt.Errorf("tool %s returned an error: %s", name, text)
	}
	return text, nil
}

// Close shuts down the underlying client when the registry owns it
func (r *Registry) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// ResultText joins the text content of a tool result
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
