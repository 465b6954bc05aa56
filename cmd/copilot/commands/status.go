// ABOUTME: Status command reporting configuration and connection state
package commands

import (
	"fmt"
	"io"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/spf13/cobra"
)

var (
	statusConnect bool
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backends and connection state",
		Long: `Show which backends are configured and the connection state.

With --connect the MCP connection is attempted first, so the report
reflects whether the server is reachable.

Examples:
  copilot status
  copilot status --connect
  copilot status --format json`,
		RunE: runStatus,
	}

	cmd.Flags().BoolVar(&statusConnect, "connect", false, "Try to connect before reporting")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if statusConnect {
		a.connect(ctx)
	}

	s := a.workspace.Status()
	out := cmd.OutOrStdout()

	if jsonOutput() {
		return printJSON(out, map[string]interface{}{
			"status":     s,
			"ready":      s.Ready(),
			"mcp_url":    a.cfg.MCPURL,
			"proxy_url":  a.cfg.ProxyURL,
			"oauth":      a.cfg.OAuthConfigured(),
			"transcript": a.cfg.Transcript,
			"llm":        a.cfg.OpenAIKey != "",
		})
	}

	fmt.Fprintf(out, "MCP server:  %s\n", orNone(a.cfg.MCPURL))
	fmt.Fprintf(out, "Proxy:       %s\n", orNone(a.cfg.ProxyURL))
	fmt.Fprintf(out, "OAuth:       %t\n", a.cfg.OAuthConfigured())
	fmt.Fprintf(out, "Generation:  %t\n", a.cfg.OpenAIKey != "")
	fmt.Fprintf(out, "Transcript:  %s\n", a.cfg.Transcript)
	printStatus(out, s, a.cfg.OpenAIKey == "")
	return nil
}

// printStatus writes the two state machines and the generation mode
func printStatus(w io.Writer, s models.Status, degraded bool) {
	fmt.Fprintf(w, "Connection:  %s\n", s.Connection)
	fmt.Fprintf(w, "Auth:        %s\n", s.Auth)
	if s.OfflineReason != "" {
		fmt.Fprintf(w, "Offline:     %s\n", s.OfflineReason)
	}
	if s.LastError != "" {
		fmt.Fprintf(w, "Last error:  %s\n", s.LastError)
	}
	if degraded {
		fmt.Fprintln(w, "Replies:     offline responder")
	}
}

func orNone(s string) string {
	if s == "" {
		return "(not configured)"
	}
	return s
}
