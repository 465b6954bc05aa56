// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Exposes the resilient Notion client as tools over stdio
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/notion-copilot/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs the copilot as an MCP (Model Context Protocol) server over stdio.
Agents get notion_search, notion_view, notion_create_page,
notion_update_page, and notion_status, each falling back from the
Notion MCP server to the REST proxy to offline placeholder data.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an agent host)
  copilot mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "notion-copilot": {
  #       "command": "copilot",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol; logs go to stderr
	a, err := newApp(ctx, appOptions{logOut: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()

	a.connect(ctx)

	server := mcp.NewServer(a.workspace, versionInfo.Version, a.logger)

	a.logger.Info().Msg("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.NewStdioServer(server).Listen(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
