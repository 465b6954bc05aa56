// ABOUTME: Workspace write commands: create and update pages
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/spf13/cobra"
)

var (
	createDatabase   string
	createParentPage string
	createProps      string

	updateTitle   string
	updateProps   string
	updateArchive bool
	updateRestore bool
)

// NewCreateCmd creates the create command
func NewCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a Notion page",
		Long: `Create a page under a database or another page.

Properties are passed as a JSON object in Notion's property format.

Examples:
  copilot create --database 8e2c2b76 "Weekly sync"
  copilot create --page 59833787 "Scratch notes"
  copilot create --database 8e2c2b76 --props '{"Status":{"select":{"name":"Draft"}}}' "Launch plan"`,
		Args: cobra.ExactArgs(1),
		RunE: runCreate,
	}

	cmd.Flags().StringVar(&createDatabase, "database", "", "Parent database id")
	cmd.Flags().StringVar(&createParentPage, "page", "", "Parent page id")
	cmd.Flags().StringVar(&createProps, "props", "", "Extra properties as a JSON object")

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	if createDatabase == "" && createParentPage == "" {
		return fmt.Errorf("one of --database or --page is required")
	}
	props, err := parseProps(createProps)
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

	res, err := a.workspace.CreatePage(ctx, models.CreatePageRequest{
		Parent:     models.PageParent{DatabaseID: createDatabase, PageID: createParentPage},
		Title:      args[0],
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("creating page: %w", err)
	}
	return printResult(cmd.OutOrStdout(), res)
}

// NewUpdateCmd creates the update command
func NewUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <page-id>",
		Short: "Update a Notion page",
		Long: `Rename a page, set properties, or archive and restore it.

Only the flags you pass change the page.

Examples:
  copilot update 59833787 --title "Renamed"
  copilot update 59833787 --archive
  copilot update 59833787 --props '{"Status":{"select":{"name":"Done"}}}'`,
		Args: cobra.ExactArgs(1),
		RunE: runUpdate,
	}

	cmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	cmd.Flags().StringVar(&updateProps, "props", "", "Properties as a JSON object")
	cmd.Flags().BoolVar(&updateArchive, "archive", false, "Archive the page")
	cmd.Flags().BoolVar(&updateRestore, "restore", false, "Restore an archived page")
	cmd.MarkFlagsMutuallyExclusive("archive", "restore")

	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	props, err := parseProps(updateProps)
	if err != nil {
		return err
	}

	req := models.UpdatePageRequest{
		PageID:     args[0],
		Title:      updateTitle,
		Properties: props,
	}
	if updateArchive || updateRestore {
		archived := updateArchive
		req.Archived = &archived
	}
	if req.Title == "" && req.Properties == nil && req.Archived == nil {
		return fmt.Errorf("nothing to update: pass --title, --props, --archive, or --restore")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	a.connect(ctx)

	res, err := a.workspace.UpdatePage(ctx, req)
	if err != nil {
		return fmt.Errorf("updating page: %w", err)
	}
	return printResult(cmd.OutOrStdout(), res)
}

// parseProps decodes a --props flag; empty means no properties
func parseProps(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("--props must be a JSON object: %w", err)
	}
	return props, nil
}
