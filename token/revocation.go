package token

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultRevokedCapacity = 10000

// RevokedTokenCache is the denylist of access tokens logged out before they
// expired, keyed by jti.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	// Cleanup drops entries whose token has expired anyway and returns how
	// many were removed.
	Cleanup(now time.Time) int
	Len() int
}

var _ RevokedTokenCache = (*LRURevokedTokenCache)(nil)

// LRURevokedTokenCache holds at most capacity entries; past that the oldest
// revocation is forgotten first.
type LRURevokedTokenCache struct {
	entries *lru.Cache[string, time.Time]
}

func NewRevokedTokenCache(capacity int) *LRURevokedTokenCache {
	if capacity < 1 {
		capacity = DefaultRevokedCapacity
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, time.Time](capacity)
	return &LRURevokedTokenCache{entries: entries}
}

func (c *LRURevokedTokenCache) Add(jti string, exp time.Time) error {
	c.entries.Add(jti, exp)
	return nil
}

func (c *LRURevokedTokenCache) IsRevoked(jti string) bool {
	return c.entries.Contains(jti)
}

func (c *LRURevokedTokenCache) Cleanup(now time.Time) int {
	removed := 0
	for _, jti := range c.entries.Keys() {
		if exp, ok := c.entries.Peek(jti); ok && now.After(exp) {
			c.entries.Remove(jti)
			removed++
		}
	}
	return removed
}

func (c *LRURevokedTokenCache) Len() int {
	return c.entries.Len()
}
