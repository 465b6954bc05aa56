// ABOUTME: Tests for transcript turn storage
// ABOUTME: Verifies append ordering, recent windows, and clearing
package sqlite

import (
	"fmt"
	"testing"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTurn(t *testing.T, text string) *models.ConversationTurn {
	t.Helper()
	turn, err := models.NewTurn(models.RoleUser, text, models.SourceUser)
	require.NoError(t, err)
	return turn
}

func newTestStore(t *testing.T) *TurnStore {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTurnStore(db)
}

func TestTurnStore_AppendAndRecent(t *testing.T) {
	store := newTestStore(t)

	user := testTurn(t, "what's in my notion workspace")
	reply, err := models.NewTurn(models.RoleAssistant, "You have 3 pages.", models.SourceLLM)
	require.NoError(t, err)
	reply.Intent = models.IntentNotion
	reply.Confidence = 0.9
	reply.Tier = models.TierProxy

	require.NoError(t, store.Append(user))
	require.NoError(t, store.Append(reply))

	turns, err := store.Recent(0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, user.ID, turns[0].ID)
	assert.Equal(t, reply.ID, turns[1].ID)

	got := turns[1]
	assert.Equal(t, models.RoleAssistant, got.Role)
	assert.Equal(t, models.IntentNotion, got.Intent)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, models.SourceLLM, got.Source)
	assert.Equal(t, models.TierProxy, got.Tier)
	assert.True(t, got.Timestamp.Equal(reply.Timestamp), "Timestamp = %v, want %v", got.Timestamp, reply.Timestamp)

	assert.Empty(t, turns[0].Intent, "user turn has no intent")
	assert.Empty(t, turns[0].Tier, "user turn has no tier")
}

func TestTurnStore_RecentLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(testTurn(t, fmt.Sprintf("message %d", i))))
	}

	turns, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "message 3", turns[0].Text)
	assert.Equal(t, "message 4", turns[1].Text)
}

func TestTurnStore_AppendIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	turn := testTurn(t, "hello")

	require.NoError(t, store.Append(turn))
	require.NoError(t, store.Append(turn))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTurnStore_ClearAndDelete(t *testing.T) {
	store := newTestStore(t)
	keep := testTurn(t, "keep")
	drop := testTurn(t, "drop")
	require.NoError(t, store.Append(keep))
	require.NoError(t, store.Append(drop))

	require.NoError(t, store.Delete(drop.ID))
	turns, err := store.Recent(0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, keep.ID, turns[0].ID)

	require.NoError(t, store.Clear())
	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}
