package charm

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for *kv.KV
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	syncs  int
	closed bool
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Set(k, v []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(k)] = v
	return nil
}

func (m *memStore) Get(k []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(k)]
	if !ok {
		return nil, errors.New("key not found")
	}
	return v, nil
}

func (m *memStore) Delete(k []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(k))
	return nil
}

func (m *memStore) Keys() ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

func (m *memStore) Sync() error  { m.syncs++; return nil }
func (m *memStore) Reset() error { m.data = map[string][]byte{}; return nil }
func (m *memStore) Close() error { m.closed = true; return nil }

func turnAt(t *testing.T, text string, at time.Time) *models.ConversationTurn {
	t.Helper()
	turn, err := models.NewTurn(models.RoleUser, text, models.SourceUser)
	require.NoError(t, err)
	turn.Timestamp = at
	return turn
}

func TestAppendAndRecent_ChronologicalOrder(t *testing.T) {
	s := newMemStore()
	c := newClient(s, &Config{AutoSync: true})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Appended out of order on purpose
	require.NoError(t, c.Append(turnAt(t, "second", base.Add(time.Second))))
	require.NoError(t, c.Append(turnAt(t, "first", base)))
	require.NoError(t, c.Append(turnAt(t, "third", base.Add(2*time.Second))))

	turns, err := c.Recent(0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{turns[0].Text, turns[1].Text, turns[2].Text})
	assert.Equal(t, 3, s.syncs)

	last, err := c.Recent(2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "second", last[0].Text)
}

func TestRecent_IgnoresForeignKeysAndBadEntries(t *testing.T) {
	s := newMemStore()
	c := newClient(s, &Config{})
	require.NoError(t, c.Append(turnAt(t, "hello", time.Now())))
	require.NoError(t, s.Set([]byte("profile:user"), []byte(`{}`)))
	require.NoError(t, s.Set([]byte(TurnPrefix+"00000000T000000.000000000Z:broken"), []byte("not json")))

	turns, err := c.Recent(0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].Text)
	assert.Zero(t, s.syncs)
}

func TestClear_RemovesOnlyTurns(t *testing.T) {
	s := newMemStore()
	c := newClient(s, &Config{})
	require.NoError(t, c.Append(turnAt(t, "a", time.Now())))
	require.NoError(t, c.Append(turnAt(t, "b", time.Now().Add(time.Millisecond))))
	require.NoError(t, s.Set([]byte("other"), []byte("x")))

	require.NoError(t, c.Clear())

	n, err := c.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.Get([]byte("other"))
	assert.NoError(t, err)
}

func TestTurnKey_StoresFullTurn(t *testing.T) {
	s := newMemStore()
	c := newClient(s, &Config{})
	turn := turnAt(t, "hi", time.Date(2026, 3, 1, 0, 0, 0, 5, time.UTC))
	turn.Intent = models.IntentNotion
	turn.Tier = models.TierOffline
	require.NoError(t, c.Append(turn))

	raw, err := s.Get([]byte(TurnKey(turn)))
	require.NoError(t, err)
	var got models.ConversationTurn
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, turn.ID, got.ID)
	assert.Equal(t, models.TierOffline, got.Tier)
	assert.Contains(t, TurnKey(turn), "20260301T000000.000000005Z")
}

func TestClose_Idempotent(t *testing.T) {
	s := newMemStore()
	c := newClient(s, &Config{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, s.closed)
}
