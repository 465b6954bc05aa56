// ABOUTME: Maps canonical operations to MCP wire messages and proxy REST requests
// ABOUTME: Unknown backend fields are dropped; parents collapse to one target
package translate

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/harper/notion-copilot/internal/models"
)

// MCP message types on the push transport
const (
	TypeSearch           = "search"
	TypeGetPage          = "get_page"
	TypeGetDatabase      = "get_database"
	TypeGetBlockChildren = "get_block_children"
	TypeCreatePage       = "create_page"
	TypeUpdatePage       = "update_page"
)

// Backend-specific fields each target accepts from Extra
var (
	mcpCreateFields   = allow("icon", "cover")
	mcpUpdateFields   = allow("icon", "cover")
	proxyCreateFields = allow("icon", "cover")
	proxyUpdateFields = allow("icon", "cover", "in_trash")
)

func allow(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// MCPMessage is a request for the Correlator: {id, type, ...Payload}
type MCPMessage struct {
	Type    string
	Payload map[string]any
}

// ToMCP converts op into the MCP server's wire message
func ToMCP(op models.Operation) (MCPMessage, error) {
	if err := op.Validate(); err != nil {
		return MCPMessage{}, err
	}

	switch op.Kind {
	case models.OpSearch:
		return MCPMessage{Type: TypeSearch, Payload: searchBody(op)}, nil
	case models.OpViewPage:
		return MCPMessage{Type: TypeGetPage, Payload: map[string]any{"page_id": op.ID}}, nil
	case models.OpViewDatabase:
		return MCPMessage{Type: TypeGetDatabase, Payload: map[string]any{"database_id": op.ID}}, nil
	case models.OpViewBlockChildren:
		return MCPMessage{Type: TypeGetBlockChildren, Payload: map[string]any{"block_id": op.ID}}, nil
	case models.OpCreatePage:
		req := op.Create
		props := copyProps(req.Properties)
		props["title"] = mcpTitle(req.Title)
		payload := map[string]any{
			"parent":     collapseParent(req.Parent, false),
			"properties": props,
		}
		if len(req.Children) > 0 {
			payload["children"] = req.Children
		}
		mergeAllowed(payload, req.Extra, mcpCreateFields)
		return MCPMessage{Type: TypeCreatePage, Payload: payload}, nil
	case models.OpUpdatePage:
		req := op.Update
		payload := map[string]any{"page_id": req.PageID}
		if props := updateProps(req, mcpTitle); len(props) > 0 {
			payload["properties"] = props
		}
		if req.Archived != nil {
			payload["archived"] = *req.Archived
		}
		mergeAllowed(payload, req.Extra, mcpUpdateFields)
		return MCPMessage{Type: TypeUpdatePage, Payload: payload}, nil
	}
	return MCPMessage{}, fmt.Errorf("unsupported operation %s", op.Kind)
}

// FromMCP converts an MCP result into the canonical Result
func FromMCP(op models.Operation, raw []byte) (*models.Result, error) {
	res, err := ParseResponse(op, raw)
	if err != nil {
		return nil, err
	}
	res.Tier = models.TierMCP
	return res, nil
}

// ProxyRequest is one REST call against the proxy backend
type ProxyRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// ToProxy converts op into the proxy's REST request
func ToProxy(op models.Operation) (ProxyRequest, error) {
	if err := op.Validate(); err != nil {
		return ProxyRequest{}, err
	}

	switch op.Kind {
	case models.OpSearch:
		return ProxyRequest{Method: http.MethodPost, Path: "/search", Body: searchBody(op)}, nil
	case models.OpViewPage:
		return ProxyRequest{Method: http.MethodGet, Path: "/pages/" + url.PathEscape(op.ID)}, nil
	case models.OpViewDatabase:
		return ProxyRequest{Method: http.MethodGet, Path: "/databases/" + url.PathEscape(op.ID)}, nil
	case models.OpViewBlockChildren:
		return ProxyRequest{Method: http.MethodGet, Path: "/blocks/" + url.PathEscape(op.ID) + "/children"}, nil
	case models.OpCreatePage:
		req := op.Create
		props := copyProps(req.Properties)
		props["title"] = proxyTitle(req.Title)
		body := map[string]any{
			"parent":     collapseParent(req.Parent, true),
			"properties": props,
		}
		if len(req.Children) > 0 {
			body["children"] = req.Children
		}
		mergeAllowed(body, req.Extra, proxyCreateFields)
		return ProxyRequest{Method: http.MethodPost, Path: "/pages", Body: body}, nil
	case models.OpUpdatePage:
		req := op.Update
		body := map[string]any{}
		if props := updateProps(req, proxyTitle); len(props) > 0 {
			body["properties"] = props
		}
		if req.Archived != nil {
			body["archived"] = *req.Archived
		}
		mergeAllowed(body, req.Extra, proxyUpdateFields)
		return ProxyRequest{Method: http.MethodPatch, Path: "/pages/" + url.PathEscape(req.PageID), Body: body}, nil
	}
	return ProxyRequest{}, fmt.Errorf("unsupported operation %s", op.Kind)
}

// FromProxy converts a proxy response body into the canonical Result
func FromProxy(op models.Operation, raw []byte) (*models.Result, error) {
	res, err := ParseResponse(op, raw)
	if err != nil {
		return nil, err
	}
	res.Tier = models.TierProxy
	return res, nil
}

func searchBody(op models.Operation) map[string]any {
	body := map[string]any{"query": op.Query}
	if op.Filter != nil {
		if op.Filter.Object != "" {
			body["filter"] = map[string]any{"property": "object", "value": op.Filter.Object}
		}
		if op.Filter.PageSize > 0 {
			body["page_size"] = op.Filter.PageSize
		}
	}
	return body
}

// collapseParent picks database, then page, then workspace scope
func collapseParent(p models.PageParent, typed bool) map[string]any {
	var key, id string
	switch {
	case p.DatabaseID != "":
		key, id = "database_id", p.DatabaseID
	case p.PageID != "":
		key, id = "page_id", p.PageID
	default:
		if typed {
			return map[string]any{"type": "workspace", "workspace": true}
		}
		return map[string]any{"workspace": true}
	}
	if typed {
		return map[string]any{"type": key, key: id}
	}
	return map[string]any{key: id}
}

func mcpTitle(title string) any {
	return []any{map[string]any{"type": "text", "text": map[string]any{"content": title}}}
}

func proxyTitle(title string) any {
	return map[string]any{"title": []any{map[string]any{"text": map[string]any{"content": title}}}}
}

func updateProps(req *models.UpdatePageRequest, title func(string) any) map[string]any {
	props := copyProps(req.Properties)
	if req.Title != "" {
		props["title"] = title(req.Title)
	}
	return props
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mergeAllowed(dst, extra map[string]any, allowed map[string]bool) {
	for k, v := range extra {
		if allowed[k] {
			dst[k] = v
		}
	}
}
