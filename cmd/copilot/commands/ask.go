// ABOUTME: Conversation commands: one-shot ask and intent detection
// ABOUTME: Both run the same orchestrator pipeline the chat loop uses
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/harper/notion-copilot/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	askSpeak bool
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message to the assistant",
		Long: `Send one message to the assistant and print the reply.

The message is classified, Notion context is fetched when the intent
calls for it, and the reply is generated. Without OPENAI_API_KEY the
reply comes from the offline responder.

Examples:
  copilot ask "what's on my roadmap page?"
  copilot ask --speak "search notion for meeting notes"
  copilot ask --format json "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().BoolVar(&askSpeak, "speak", false, "Read the reply aloud")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{withAssistant: true, speak: askSpeak})
	if err != nil {
		return err
	}
	defer a.Close()

	a.connect(ctx)

	reply, err := a.assistant.SendMessage(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printReply(cmd.OutOrStdout(), reply)
}

// printReply writes the reply text with a provenance footer
func printReply(w io.Writer, reply *orchestrator.Reply) error {
	if jsonOutput() {
		return printJSON(w, reply)
	}

	fmt.Fprintln(w, reply.Text)
	if !quiet {
		footer := fmt.Sprintf("[%s, intent %s %.2f", reply.Source, reply.Intent, reply.Confidence)
		if reply.Tier != "" {
			footer += ", notion via " + string(reply.Tier)
		}
		if reply.Degraded {
			footer += ", offline mode"
		}
		fmt.Fprintln(w, footer+"]")
	}
	return nil
}

// NewIntentCmd creates the intent command
func NewIntentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent <message>",
		Short: "Classify a message without answering it",
		Long: `Classify a message into notion, discord, calendar, or general.

Identical text within the debounce window (COPILOT_INTENT_DEBOUNCE)
shares one classification. Without OPENAI_API_KEY a keyword heuristic
is used.

Examples:
  copilot intent "find my meeting notes"
  copilot intent --format json "what's on my calendar"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIntent,
	}

	return cmd
}

func runIntent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{withAssistant: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.assistant.DetectIntent(ctx, strings.Join(args, " "))
	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), res)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Intent:     %s\n", res.Intent)
	fmt.Fprintf(out, "Confidence: %.2f\n", res.Confidence)
	if res.Action != "" {
		fmt.Fprintf(out, "Action:     %s\n", res.Action)
	}
	for k, v := range res.Params {
		fmt.Fprintf(out, "  %s: %v\n", k, v)
	}
	return nil
}
