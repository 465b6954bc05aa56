// ABOUTME: Public Notion workspace client: connection lifecycle plus search/view/create/update
// ABOUTME: Callers never learn which backend served them beyond the Result's tier tag
package workspace

import (
	"context"
	"strings"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/rs/zerolog"
)

// Connection is the lifecycle half of the API; connection.Manager implements it
type Connection interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Authenticate(ctx context.Context) error
	EnableOfflineMode(reason string)
	DisableOfflineMode()
	Status() models.Status
	Subscribe(fn func(models.Status)) func()
}

// Runner executes operations; backend.Chain implements it
type Runner interface {
	Do(ctx context.Context, op models.Operation) (*models.Result, error)
}

// Client is the single surface the orchestrator, HTTP API, and MCP server use
type Client struct {
	conn   Connection
	chain  Runner
	logger zerolog.Logger
}

func New(conn Connection, chain Runner, logger zerolog.Logger) *Client {
	return &Client{
		conn:   conn,
		chain:  chain,
		logger: logger.With().Str("component", "workspace").Logger(),
	}
}

// Connect opens the MCP connection
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

func (c *Client) Disconnect() error {
	return c.conn.Disconnect()
}

func (c *Client) Authenticate(ctx context.Context) error {
	return c.conn.Authenticate(ctx)
}

func (c *Client) EnableOfflineMode(reason string) {
	if strings.TrimSpace(reason) == "" {
		reason = "enabled by user"
	}
	c.conn.EnableOfflineMode(reason)
}

func (c *Client) DisableOfflineMode() {
	c.conn.DisableOfflineMode()
}

func (c *Client) Status() models.Status {
	return c.conn.Status()
}

// Subscribe forwards connection transitions to fn
func (c *Client) Subscribe(fn func(models.Status)) func() {
	return c.conn.Subscribe(fn)
}

// Search finds pages and databases matching query
func (c *Client) Search(ctx context.Context, query string, filter *models.SearchFilter) (*models.Result, error) {
	return c.Do(ctx, models.Operation{Kind: models.OpSearch, Query: query, Filter: filter})
}

// View reads one page, one database, or a block's children
func (c *Client) View(ctx context.Context, kind models.ResourceKind, id string) (*models.Result, error) {
	return c.Do(ctx, models.Operation{Kind: models.ViewOp(kind), ID: id})
}

func (c *Client) CreatePage(ctx context.Context, req models.CreatePageRequest) (*models.Result, error) {
	return c.Do(ctx, models.Operation{Kind: models.OpCreatePage, Create: &req})
}

func (c *Client) UpdatePage(ctx context.Context, req models.UpdatePageRequest) (*models.Result, error) {
	return c.Do(ctx, models.Operation{Kind: models.OpUpdatePage, Update: &req})
}

// Do runs any operation through the fallback chain
func (c *Client) Do(ctx context.Context, op models.Operation) (*models.Result, error) {
	res, err := c.chain.Do(ctx, op)
	if err != nil {
		c.logger.Error().Err(err).Str("op", string(op.Kind)).Msg("operation failed")
		return nil, err
	}
	c.logger.Debug().Str("op", string(op.Kind)).Str("tier", string(res.Tier)).Int("resources", len(res.Resources)).Msg("operation served")
	return res, nil
}
