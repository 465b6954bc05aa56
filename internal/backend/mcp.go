// ABOUTME: MCP tier: sends translated operations over the connection manager
package backend

import (
	"context"
	"encoding/json"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/translate"
)

// Requester is the part of connection.Manager the MCP tier needs
type Requester interface {
	Ready() bool
	Request(ctx context.Context, typ string, payload map[string]any) (json.RawMessage, error)
}

// MCPTier serves operations through a live, authenticated MCP connection
type MCPTier struct {
	conn Requester
}

func NewMCPTier(conn Requester) *MCPTier {
	return &MCPTier{conn: conn}
}

func (t *MCPTier) Name() models.BackendTier { return models.TierMCP }

func (t *MCPTier) Available() bool { return t.conn.Ready() }

func (t *MCPTier) Do(ctx context.Context, op models.Operation) (*models.Result, error) {
	msg, err := translate.ToMCP(op)
	if err != nil {
		return nil, err
	}
	raw, err := t.conn.Request(ctx, msg.Type, msg.Payload)
	if err != nil {
		return nil, err
	}
	return translate.FromMCP(op, raw)
}
