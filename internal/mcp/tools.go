// ABOUTME: MCP tool definitions and registration for the copilot server
// ABOUTME: Exposes the resilient workspace operations as five notion_* tools
package mcp

import (
	"context"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Tool names
const (
	ToolSearch     = "notion_search"
	ToolView       = "notion_view"
	ToolCreatePage = "notion_create_page"
	ToolUpdatePage = "notion_update_page"
	ToolStatus     = "notion_status"
)

// Workspace is the slice of workspace.Client the tools need
type Workspace interface {
	Search(ctx context.Context, query string, filter *models.SearchFilter) (*models.Result, error)
	View(ctx context.Context, kind models.ResourceKind, id string) (*models.Result, error)
	CreatePage(ctx context.Context, req models.CreatePageRequest) (*models.Result, error)
	UpdatePage(ctx context.Context, req models.UpdatePageRequest) (*models.Result, error)
	Status() models.Status
}

// NewServer creates an MCP server with every workspace tool registered
func NewServer(ws Workspace, version string, logger zerolog.Logger) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("Notion Copilot", version, mcpserver.WithToolCapabilities(false))
	RegisterTools(server, ws, logger)
	return server
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, ws Workspace, logger zerolog.Logger) *Handlers {
	handlers := NewHandlers(ws, logger)

	server.AddTool(mcp.Tool{
		Name:        ToolSearch,
		Description: "Search the Notion workspace for pages and databases. Falls back to a REST proxy or offline placeholder data when the live connection is unavailable.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Text to search for (empty lists recent items)",
				},
				"object": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"page", "database"},
					"description": "Restrict results to pages or databases",
				},
				"page_size": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results",
				},
			},
		},
	}, handlers.Search)

	server.AddTool(mcp.Tool{
		Name:        ToolView,
		Description: "Read one page, one database, or the children of a block.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"page", "database", "block"},
					"description": "Resource type (default: page)",
				},
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Notion id of the resource",
				},
			},
			Required: []string{"id"},
		},
	}, handlers.View)

	server.AddTool(mcp.Tool{
		Name:        ToolCreatePage,
		Description: "Create a page under a database or another page.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Page title",
				},
				"database_id": map[string]interface{}{
					"type":        "string",
					"description": "Parent database id",
				},
				"page_id": map[string]interface{}{
					"type":        "string",
					"description": "Parent page id (used when database_id is empty)",
				},
				"properties": map[string]interface{}{
					"type":        "object",
					"description": "Additional Notion properties",
				},
			},
			Required: []string{"title"},
		},
	}, handlers.CreatePage)

	server.AddTool(mcp.Tool{
		Name:        ToolUpdatePage,
		Description: "Rename, re-property, archive, or restore a page. Only provided fields change.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"page_id": map[string]interface{}{
					"type":        "string",
					"description": "Page to update",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "New title",
				},
				"properties": map[string]interface{}{
					"type":        "object",
					"description": "Notion properties to set",
				},
				"archived": map[string]interface{}{
					"type":        "boolean",
					"description": "Archive (true) or restore (false) the page",
				},
			},
			Required: []string{"page_id"},
		},
	}, handlers.UpdatePage)

	server.AddTool(mcp.Tool{
		Name:        ToolStatus,
		Description: "Report the connection and authentication state of the Notion client.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.Status)

	return handlers
}
