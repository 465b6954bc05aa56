// ABOUTME: Interactive chat loop with slash commands for connection control
// ABOUTME: Each line goes through the orchestrator; replies can be spoken
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/harper/notion-copilot/internal/oauth"
	"github.com/spf13/cobra"
)

var (
	chatSpeak bool
)

const chatHelp = `Commands:
  /status      show connection and auth state
  /connect     connect to the Notion MCP server
  /auth        run the OAuth handshake
  /offline     switch to offline mode
  /online      leave offline mode
  /history     show recent turns
  /reset       clear the conversation
  /quit        exit`

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
		Long: `Start an interactive conversation with the assistant.

Lines starting with / control the session; type /help for the list.
The conversation is persisted to the transcript store selected by
COPILOT_TRANSCRIPT (sqlite, charm, or memory).

Examples:
  copilot chat
  copilot chat --speak`,
		RunE: runChat,
	}

	cmd.Flags().BoolVar(&chatSpeak, "speak", false, "Read replies aloud")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx, appOptions{
		withAssistant: true,
		speak:         chatSpeak,
		popup:         oauth.PrintPopup{Out: out},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	a.connect(ctx)

	if !quiet {
		fmt.Fprintln(out, "Notion Copilot. Type /help for commands, /quit to exit.")
	}
	return chatLoop(ctx, a, cmd.InOrStdin(), out)
}

func chatLoop(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		if !quiet {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := chatCommand(ctx, a, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		reply, err := a.assistant.SendMessage(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := printReply(out, reply); err != nil {
			return err
		}
	}
}

// chatCommand runs one slash command; done reports whether the loop should end
func chatCommand(ctx context.Context, a *app, line string, out io.Writer) (bool, error) {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
	case "/status":
		printStatus(out, a.workspace.Status(), a.assistant.Degraded())
	case "/connect":
		if err := a.workspace.Connect(ctx); err != nil {
			return false, err
		}
		printStatus(out, a.workspace.Status(), a.assistant.Degraded())
	case "/auth":
		if err := a.workspace.Authenticate(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "Authenticated")
	case "/offline":
		reason := strings.TrimSpace(strings.TrimPrefix(line, "/offline"))
		a.workspace.EnableOfflineMode(reason)
		fmt.Fprintln(out, "Offline mode on")
	case "/online":
		a.workspace.DisableOfflineMode()
		fmt.Fprintln(out, "Offline mode off")
	case "/history":
		return false, printTurns(out, a.assistant.History())
	case "/reset":
		if err := a.assistant.Reset(); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "Conversation cleared")
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", line)
	}
	return false, nil
}
