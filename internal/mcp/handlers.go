// ABOUTME: MCP tool handler implementations for the copilot server
// ABOUTME: Each handler calls the workspace client and returns JSON text tagged with the serving tier
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	ws     Workspace
	logger zerolog.Logger
}

func NewHandlers(ws Workspace, logger zerolog.Logger) *Handlers {
	return &Handlers{
		ws:     ws,
		logger: logger.With().Str("component", "mcp").Logger(),
	}
}

// Search handles the notion_search tool
func (h *Handlers) Search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")

	var filter *models.SearchFilter
	object := request.GetString("object", "")
	pageSize := request.GetInt("page_size", 0)
	if object != "" || pageSize > 0 {
		if object != "" && object != "page" && object != "database" {
			return mcp.NewToolResultError(fmt.Sprintf("object must be page or database, got %q", object)), nil
		}
		filter = &models.SearchFilter{Object: object, PageSize: pageSize}
	}

	res, err := h.ws.Search(ctx, query, filter)
	if err != nil {
		return h.failed(ToolSearch, err), nil
	}
	return resultJSON(res)
}

// View handles the notion_view tool
func (h *Handlers) View(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("id argument is required and must be a string"), nil
	}

	kind, err := models.ParseResourceKind(request.GetString("type", "page"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := h.ws.View(ctx, kind, id)
	if err != nil {
		return h.failed(ToolView, err), nil
	}
	return resultJSON(res)
}

// CreatePage handles the notion_create_page tool
func (h *Handlers) CreatePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil || title == "" {
		return mcp.NewToolResultError("title argument is required and must be a string"), nil
	}

	req := models.CreatePageRequest{
		Parent: models.PageParent{
			DatabaseID: request.GetString("database_id", ""),
			PageID:     request.GetString("page_id", ""),
		},
		Title:      title,
		Properties: objectArg(request, "properties"),
	}

	res, err := h.ws.CreatePage(ctx, req)
	if err != nil {
		return h.failed(ToolCreatePage, err), nil
	}
	return resultJSON(res)
}

// UpdatePage handles the notion_update_page tool
func (h *Handlers) UpdatePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := request.RequireString("page_id")
	if err != nil || pageID == "" {
		return mcp.NewToolResultError("page_id argument is required and must be a string"), nil
	}

	req := models.UpdatePageRequest{
		PageID:     pageID,
		Title:      request.GetString("title", ""),
		Properties: objectArg(request, "properties"),
	}
	// archived is tri-state: absent leaves the page as it is
	if raw, ok := request.GetArguments()["archived"]; ok {
		archived, isBool := raw.(bool)
		if !isBool {
			return mcp.NewToolResultError("archived must be a boolean"), nil
		}
		req.Archived = &archived
	}

	res, err := h.ws.UpdatePage(ctx, req)
	if err != nil {
		return h.failed(ToolUpdatePage, err), nil
	}
	return resultJSON(res)
}

// Status handles the notion_status tool
func (h *Handlers) Status(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := h.ws.Status()

	tier := models.TierOffline
	if s.Ready() {
		tier = models.TierMCP
	}

	response := map[string]interface{}{
		"connection": s.Connection,
		"auth":       s.Auth,
		"ready":      s.Ready(),
		"tier":       tier,
	}
	if s.OfflineReason != "" {
		response["offline_reason"] = s.OfflineReason
	}
	if s.LastError != "" {
		response["last_error"] = s.LastError
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

func (h *Handlers) failed(tool string, err error) *mcp.CallToolResult {
	h.logger.Warn().Err(err).Str("tool", tool).Msg("tool call failed")
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

// resultJSON renders a workspace result; the tier field tells callers which backend answered
func resultJSON(res *models.Result) (*mcp.CallToolResult, error) {
	resources := res.Resources
	if resources == nil {
		resources = []models.Resource{}
	}

	response := map[string]interface{}{
		"op":        res.Op,
		"tier":      res.Tier,
		"resources": resources,
		"has_more":  res.HasMore,
		"degraded":  res.Degraded,
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// objectArg extracts a JSON object argument, or nil when absent or mistyped
func objectArg(request mcp.CallToolRequest, key string) map[string]any {
	if raw, ok := request.GetArguments()[key]; ok {
		if obj, ok := raw.(map[string]any); ok && len(obj) > 0 {
			return obj
		}
	}
	return nil
}
