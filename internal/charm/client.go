// ABOUTME: Charm KV client wrapper for cloud-synced transcripts
// ABOUTME: Stores conversation turns under time-ordered keys with SSH key auth
package charm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/harper/notion-copilot/internal/models"
)

// TurnPrefix namespaces transcript entries inside the KV database
const TurnPrefix = "turn:"

// Config holds charm client configuration
type Config struct {
	Host     string
	DBName   string
	AutoSync bool
}

// store is the subset of *kv.KV the client uses
type store interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
	Reset() error
	Close() error
}

// Client wraps charm KV for transcript storage
type Client struct {
	kv     store
	config *Config
	mu     sync.Mutex
}

// NewClient opens the charm KV database named in cfg
func NewClient(cfg *Config) (*Client, error) {
	// kv reads the host from the environment
	if cfg.Host != "" {
		_ = os.Setenv("CHARM_HOST", cfg.Host)
	}

	db, err := kv.OpenWithDefaults(cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	c := newClient(db, cfg)

	// Pull remote data on startup
	if cfg.AutoSync {
		_ = db.Sync()
	}

	return c, nil
}

func newClient(s store, cfg *Config) *Client {
	return &Client{kv: s, config: cfg}
}

// Close closes the KV database
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kv != nil {
		err := c.kv.Close()
		c.kv = nil
		return err
	}
	return nil
}

// syncIfEnabled syncs to cloud after writes
func (c *Client) syncIfEnabled() {
	if c.config.AutoSync {
		_ = c.kv.Sync()
	}
}

// Append stores a turn and pushes it to the cloud when auto-sync is on
func (c *Client) Append(turn *models.ConversationTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Set([]byte(TurnKey(turn)), data); err != nil {
		return fmt.Errorf("failed to set turn %s: %w", turn.ID, err)
	}
	c.syncIfEnabled()
	return nil
}

// Recent returns the last limit turns in conversation order. limit <= 0 returns all.
func (c *Client) Recent(limit int) ([]models.ConversationTurn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.turnKeys()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}

	turns := make([]models.ConversationTurn, 0, len(keys))
	for _, key := range keys {
		data, err := c.kv.Get([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", key, err)
		}
		var turn models.ConversationTurn
		if err := json.Unmarshal(data, &turn); err != nil {
			// Skip entries this version cannot decode
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear deletes every stored turn
func (c *Client) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.turnKeys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.kv.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	c.syncIfEnabled()
	return nil
}

// Count returns the number of stored turns
func (c *Client) Count() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.turnKeys()
	return len(keys), err
}

func (c *Client) turnKeys() ([]string, error) {
	keys, err := c.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var result []string
	for _, key := range keys {
		if k := string(key); strings.HasPrefix(k, TurnPrefix) {
			result = append(result, k)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Sync manually triggers a sync with the cloud
func (c *Client) Sync() error {
	return c.kv.Sync()
}

// Reset wipes all local data
func (c *Client) Reset() error {
	return c.kv.Reset()
}

// Host returns the configured charm host
func (c *Client) Host() string {
	return c.config.Host
}

// ID returns the charm user ID
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// GetAuthorizedKeys returns the list of linked devices/keys
func (c *Client) GetAuthorizedKeys() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.AuthorizedKeys()
}

// UnlinkKey removes an authorized key from the account
func (c *Client) UnlinkKey(key string) error {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.UnlinkAuthorizedKey(key)
}

// TurnKey orders turns by timestamp; the id breaks ties
func TurnKey(turn *models.ConversationTurn) string {
	return TurnPrefix + turn.Timestamp.UTC().Format("20060102T150405.000000000Z") + ":" + turn.ID
}
