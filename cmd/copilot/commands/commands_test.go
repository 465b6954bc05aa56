// ABOUTME: Tests for subcommand structure and for full offline runs through the app graph
// ABOUTME: Offline runs never touch the network: no backend URLs, no API key

package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/notion-copilot/internal/backend/mock"
	"github.com/harper/notion-copilot/internal/models"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineEnv isolates a test from the developer's environment
func offlineEnv(t *testing.T, transcript string) {
	t.Helper()
	env := map[string]string{
		"NOTION_MCP_URL":         "",
		"NOTION_PROXY_URL":       "",
		"NOTION_API_KEY":         "",
		"NOTION_OAUTH_CLIENT_ID": "",
		"TOOLS_MCP_URL":          "",
		"OPENAI_API_KEY":         "",
		"COPILOT_OFFLINE":        "true",
		"COPILOT_TRANSCRIPT":     transcript,
		"COPILOT_DB_PATH":        filepath.Join(t.TempDir(), "transcript.db"),
		"LOG_LEVEL":              "disabled",
		"LOG_FORMAT":             "json",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

func findSub(cmd *cobra.Command, use string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Use == use || strings.HasPrefix(sub.Use, use+" ") {
			return sub
		}
	}
	return nil
}

func TestCommands_HaveDescriptions(t *testing.T) {
	for _, sub := range NewRootCmd().Commands() {
		if sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		t.Run(sub.Name(), func(t *testing.T) {
			assert.NotEmpty(t, sub.Short)
			assert.True(t, sub.RunE != nil || sub.Run != nil || sub.HasSubCommands(), "command should be runnable or have subcommands")
		})
	}
}

func TestSearchCmd_Flags(t *testing.T) {
	cmd := NewSearchCmd()

	limit := cmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "10", limit.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("type"))
	assert.Contains(t, cmd.Long, "--format json")
}

func TestSyncCmd_Subcommands(t *testing.T) {
	cmd := NewSyncCmd()

	for _, name := range []string{"status", "now", "wipe", "keys", "unlink"} {
		sub := findSub(cmd, name)
		if assert.NotNil(t, sub, "Subcommand %q not found", name) {
			assert.NotNil(t, sub.RunE, "%s subcommand RunE should be set", name)
		}
	}

	wipe := findSub(cmd, "wipe")
	require.NotNil(t, wipe)
	assert.NotNil(t, wipe.Flags().Lookup("confirm"), "wipe should require --confirm")
}

func TestMCPCmd_Description(t *testing.T) {
	cmd := NewMCPCmd()

	for _, want := range []string{"MCP", "stdio", "notion_search"} {
		assert.Contains(t, cmd.Long, want)
	}
	assert.NotEmpty(t, cmd.Example)
}

func TestUpdateCmd_RequiresAChange(t *testing.T) {
	offlineEnv(t, "memory")

	_, err := run(t, "update", "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestUpdateCmd_ArchiveAndRestoreExclusive(t *testing.T) {
	offlineEnv(t, "memory")

	_, err := run(t, "update", "p1", "--archive", "--restore")
	assert.Error(t, err)
}

func TestCreateCmd_RequiresParent(t *testing.T) {
	offlineEnv(t, "memory")

	_, err := run(t, "create", "Notes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--database")
}

func TestCreateCmd_RejectsBadProps(t *testing.T) {
	offlineEnv(t, "memory")

	_, err := run(t, "create", "--page", "p1", "--props", "[1,2]", "Notes")
	assert.Error(t, err)
}

func TestSearch_OfflineServesPlaceholders(t *testing.T) {
	offlineEnv(t, "memory")

	out, err := run(t, "search", "--format", "json", "roadmap")
	require.NoError(t, err)

	var res models.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, models.TierOffline, res.Tier)
	assert.Len(t, res.Resources, mock.SearchResultCount)
	for _, r := range res.Resources {
		assert.True(t, strings.HasSuffix(r.Title, mock.TitleSuffix), "title %q should be marked as offline", r.Title)
	}
}

func TestView_OfflineTable(t *testing.T) {
	offlineEnv(t, "memory")

	out, err := run(t, "view", "database", "db1")
	require.NoError(t, err)
	assert.Contains(t, out, "database")
	assert.Contains(t, out, "from offline")
}

func TestView_RejectsUnknownKind(t *testing.T) {
	offlineEnv(t, "memory")

	_, err := run(t, "view", "user", "u1")
	assert.Error(t, err)
}

func TestAsk_OfflineReply(t *testing.T) {
	offlineEnv(t, "memory")

	out, err := run(t, "ask", "search notion for roadmap")
	require.NoError(t, err)
	assert.Contains(t, out, "offline mode")
	assert.Contains(t, out, mock.TitleSuffix, "reply should include offline workspace context")
	assert.Contains(t, out, "[offline", "reply footer should name the offline source")
}

func TestIntent_Heuristic(t *testing.T) {
	offlineEnv(t, "memory")

	out, err := run(t, "intent", "--format", "json", "search notion for roadmap")
	require.NoError(t, err)

	var res models.IntentResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, models.IntentNotion, res.Intent)
	assert.Equal(t, "search", res.Action)
	assert.Equal(t, "roadmap", res.Param("query"))
}

func TestHistory_SQLiteTranscriptPersists(t *testing.T) {
	offlineEnv(t, "sqlite")

	_, err := run(t, "ask", "hello there")
	require.NoError(t, err)

	out, err := run(t, "history", "--format", "json")
	require.NoError(t, err)

	var turns []models.ConversationTurn
	require.NoError(t, json.Unmarshal([]byte(out), &turns), out)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleUser, turns[0].Role)
	assert.Equal(t, "hello there", turns[0].Text)
	assert.Equal(t, models.SourceOffline, turns[1].Source)

	out, err = run(t, "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "--confirm", "clear without confirm should only warn")

	_, err = run(t, "history", "--clear", "--confirm")
	require.NoError(t, err)

	out, err = run(t, "history", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestHistory_MemoryTranscript(t *testing.T) {
	offlineEnv(t, "memory")

	out, err := run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "not persisted")
}

func TestStatus_Offline(t *testing.T) {
	offlineEnv(t, "memory")

	out, err := run(t, "status")
	require.NoError(t, err)
	for _, want := range []string{"Connection:  offline", "COPILOT_OFFLINE", "(not configured)", "offline responder"} {
		assert.Contains(t, out, want)
	}
}
