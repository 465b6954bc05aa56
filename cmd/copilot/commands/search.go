// ABOUTME: Workspace read commands: search and view
// ABOUTME: Results name the tier (mcp, proxy, offline) that served them
package commands

import (
	"fmt"
	"strings"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchType  string
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the Notion workspace",
		Long: `Search pages and databases in the Notion workspace.

Tries the MCP server, then the REST proxy, then offline placeholder
data. An empty query lists recent items.

Examples:
  copilot search "roadmap"
  copilot search --type database --limit 10 projects
  copilot search --format json "meeting notes"`,
		Args: cobra.ArbitraryArgs,
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum results to return")
	cmd.Flags().StringVar(&searchType, "type", "", "Restrict to page or database")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	if searchType != "" && searchType != "page" && searchType != "database" {
		return fmt.Errorf("--type must be page or database, got %q", searchType)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.connect(ctx)

	res, err := a.workspace.Search(ctx, strings.Join(args, " "), &models.SearchFilter{
		Object:   searchType,
		PageSize: searchLimit,
	})
	if err != nil {
		return fmt.Errorf("searching workspace: %w", err)
	}
	return printResult(cmd.OutOrStdout(), res)
}

// NewViewCmd creates the view command
func NewViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <page|database|block> <id>",
		Short: "View a page, a database, or a block's children",
		Long: `Read one resource from the Notion workspace.

Examples:
  copilot view page 59833787-2cf9-4fdf-8782-e53db20768a5
  copilot view database 8e2c2b76-9e1e-4c6d-9a3b-0a4b1c5d7e8f
  copilot view block 59833787-2cf9-4fdf-8782-e53db20768a5 --format json`,
		Args: cobra.ExactArgs(2),
		RunE: runView,
	}

	return cmd
}

func runView(cmd *cobra.Command, args []string) error {
	kind, err := models.ParseResourceKind(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.connect(ctx)

	res, err := a.workspace.View(ctx, kind, args[1])
	if err != nil {
		return fmt.Errorf("viewing %s: %w", kind, err)
	}
	return printResult(cmd.OutOrStdout(), res)
}
