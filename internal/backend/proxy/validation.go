// ABOUTME: Shared API-key validation results with a cooldown
// ABOUTME: One cache is injected into every proxy client so keys validate once per window
package proxy

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// ValidationCache remembers whether a (proxy, key) pair was accepted
type ValidationCache struct {
	entries *cache.Cache
}

// NewValidationCache keeps results for cooldown
func NewValidationCache(cooldown time.Duration) *ValidationCache {
	return &ValidationCache{entries: cache.New(cooldown, 2*cooldown)}
}

// Get returns the remembered result and whether one exists
func (v *ValidationCache) Get(baseURL, apiKey string) (valid bool, known bool) {
	x, ok := v.entries.Get(cacheKey(baseURL, apiKey))
	if !ok {
		return false, false
	}
	valid, ok = x.(bool)
	return valid, ok
}

// Set records a result for the cooldown window
func (v *ValidationCache) Set(baseURL, apiKey string, valid bool) {
	v.entries.Set(cacheKey(baseURL, apiKey), valid, cache.DefaultExpiration)
}

// Forget drops every remembered result
func (v *ValidationCache) Forget() {
	v.entries.Flush()
}

// Keys are hashed so raw API keys never sit in memory as map keys
func cacheKey(baseURL, apiKey string) string {
	sum := sha256.Sum256([]byte(baseURL + "\x00" + apiKey))
	return hex.EncodeToString(sum[:])
}
