package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proxyServer struct {
	validations atomic.Int32
	key         string

	mu       sync.Mutex
	lastBody map[string]any
	lastPath string
}

func (ps *proxyServer) last() (string, map[string]any) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.lastPath, ps.lastBody
}

func newProxyServer(t *testing.T, key string) (*proxyServer, *httptest.Server) {
	ps := &proxyServer{key: key}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderAPIKey) != ps.key {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		var body map[string]any
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		ps.mu.Lock()
		ps.lastPath, ps.lastBody = r.Method+" "+r.URL.Path, body
		ps.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/users/me":
			ps.validations.Add(1)
			_, _ = w.Write([]byte(`{"object":"user","id":"bot"}`))
		case r.URL.Path == "/search":
			_, _ = w.Write([]byte(`{"results":[{"object":"page","id":"p1","properties":{"title":{"title":[{"plain_text":"Roadmap"}]}}}],"has_more":false}`))
		case r.URL.Path == "/pages/missing":
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		default:
			_, _ = w.Write([]byte(`{"object":"page","id":"p2","properties":{"title":{"title":[{"plain_text":"Created"}]}}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return ps, srv
}

func TestDo_SearchForwardsKey(t *testing.T) {
	ps, srv := newProxyServer(t, "secret")
	c := New(srv.URL, "secret", NewValidationCache(time.Minute), zerolog.Nop())

	res, err := c.Do(context.Background(), models.Operation{Kind: models.OpSearch, Query: "road"})
	require.NoError(t, err)
	assert.Equal(t, models.TierProxy, res.Tier)
	page, _ := res.First()
	assert.Equal(t, "Roadmap", page.Title)
	path, body := ps.last()
	assert.Equal(t, "POST /search", path)
	assert.Equal(t, "road", body["query"])
}

func TestDo_CreatePage(t *testing.T) {
	ps, srv := newProxyServer(t, "secret")
	c := New(srv.URL, "secret", nil, zerolog.Nop())

	res, err := c.Do(context.Background(), models.Operation{Kind: models.OpCreatePage, Create: &models.CreatePageRequest{
		Parent: models.PageParent{DatabaseID: "db"},
		Title:  "Created",
	}})
	require.NoError(t, err)
	page, _ := res.First()
	assert.Equal(t, "Created", page.Title)
	path, body := ps.last()
	assert.Equal(t, "POST /pages", path)
	assert.Equal(t, map[string]any{"type": "database_id", "database_id": "db"}, body["parent"])
}

func TestDo_StatusErrorCarriesBody(t *testing.T) {
	_, srv := newProxyServer(t, "secret")
	c := New(srv.URL, "secret", nil, zerolog.Nop())

	_, err := c.Do(context.Background(), models.Operation{Kind: models.OpViewPage, ID: "missing"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Contains(t, se.Body, "not found")
	assert.False(t, se.Unauthorized())
}

func TestValidationCache_SharedAcrossClients(t *testing.T) {
	ps, srv := newProxyServer(t, "secret")
	shared := NewValidationCache(time.Minute)

	for i := 0; i < 5; i++ {
		c := New(srv.URL, "secret", shared, zerolog.Nop())
		_, err := c.Do(context.Background(), models.Operation{Kind: models.OpSearch})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), ps.validations.Load())
}

func TestValidationCache_CooldownExpires(t *testing.T) {
	ps, srv := newProxyServer(t, "secret")
	shared := NewValidationCache(30 * time.Millisecond)
	c := New(srv.URL, "secret", shared, zerolog.Nop())

	ok, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, err = c.Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), ps.validations.Load())
}

func TestRejectedKeyMakesTierUnavailable(t *testing.T) {
	_, srv := newProxyServer(t, "secret")
	c := New(srv.URL, "wrong", NewValidationCache(time.Minute), zerolog.Nop())
	assert.True(t, c.Available())

	_, err := c.Do(context.Background(), models.Operation{Kind: models.OpSearch})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTierUnavailable))
	assert.False(t, c.Available())
}

func TestAvailable_RequiresConfiguration(t *testing.T) {
	assert.False(t, New("", "key", nil, zerolog.Nop()).Available())
	assert.False(t, New("http://proxy", "", nil, zerolog.Nop()).Available())
	assert.True(t, New("http://proxy", "key", nil, zerolog.Nop()).Available())
}

func TestValidationCache_Forget(t *testing.T) {
	v := NewValidationCache(time.Minute)
	v.Set("http://a", "k", false)
	valid, known := v.Get("http://a", "k")
	assert.True(t, known)
	assert.False(t, valid)

	v.Forget()
	_, known = v.Get("http://a", "k")
	assert.False(t, known)
}
