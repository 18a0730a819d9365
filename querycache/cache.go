// Package querycache is the shared client-side cache behind every fleet
// query. Identical in-flight fetches are coalesced, results go stale after a
// per-entity window, and mutations invalidate cached data by tag.
package querycache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/fleet-console/internal/metrics"
)

const (
	DefaultMaxEntries   = 1000
	DefaultFetchTimeout = 30 * time.Second
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Entry is one cached query result. Data keeps the last good value even when
// the latest fetch failed.
type Entry struct {
	Key         string
	Endpoint    string
	Data        any
	HasData     bool
	Tags        []Tag
	StaleAt     time.Time
	UpdatedAt   time.Time
	Status      Status
	Err         error
	Invalidated bool

	generation uint64
}

type Stats struct {
	Entries       int    `json:"entries"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Coalesced     uint64 `json:"coalesced"`
	Errors        uint64 `json:"errors"`
	Invalidations uint64 `json:"invalidations"`
}

type Option func(*Cache)

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(c *Cache) {
		c.nowFunc = nowFunc
	}
}

func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(c *Cache) {
		c.policy = p
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *Entry]
	tagIndex map[Tag]map[string]struct{}
	// epoch counts invalidation calls; tagEpoch records the last one that
	// named each tag, so a fetch can tell whether its own tags were
	// invalidated while it ran.
	epoch    uint64
	tagEpoch map[Tag]uint64

	group        singleflight.Group
	policy       Policy
	nowFunc      func() time.Time
	maxEntries   int
	fetchTimeout time.Duration

	hits, misses, coalesced, errs, invalidations atomic.Uint64
}

func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		tagIndex:     make(map[Tag]map[string]struct{}),
		tagEpoch:     make(map[Tag]uint64),
		policy:       Policy{Default: DefaultTTL},
		nowFunc:      time.Now,
		maxEntries:   DefaultMaxEntries,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	entries, err := lru.NewWithEvict[string, *Entry](c.maxEntries, c.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, "[querycache.New] creating lru")
	}
	c.entries = entries
	return c, nil
}

// onEvict runs inside entries calls, which are only made with mu held.
func (c *Cache) onEvict(key string, e *Entry) {
	c.unindex(key, e.Tags)
	metrics.CacheEntries.Set(float64(c.entries.Len()))
}

func (c *Cache) index(key string, tags []Tag) {
	for _, tag := range tags {
		keys, ok := c.tagIndex[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tagIndex[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

func (c *Cache) unindex(key string, tags []Tag) {
	for _, tag := range tags {
		if keys, ok := c.tagIndex[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.tagIndex, tag)
			}
		}
	}
}

// Key builds the cache key for an endpoint and its parameters. Parameters are
// canonicalised through JSON so that maps with the same content produce the
// same key.
func Key(endpoint string, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", errors.Wrapf(err, "[querycache.Key] encoding params for %s", endpoint)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", errors.Wrapf(err, "[querycache.Key] normalising params for %s", endpoint)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", errors.Wrapf(err, "[querycache.Key] encoding params for %s", endpoint)
	}
	return endpoint + "(" + string(canonical) + ")", nil
}

// lookup returns a copy of the entry and whether it can be served as is.
func (c *Cache) lookup(key string) (Entry, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return Entry{}, false, false
	}
	fresh := e.HasData && !e.Invalidated && c.nowFunc().Before(e.StaleAt)
	return *e, true, fresh
}

// fetchStart is what a fetch remembers about the cache when it started.
type fetchStart struct {
	generation uint64
	epoch      uint64
}

// begin marks the entry as loading and returns where the fetch started from.
func (c *Cache) begin(key, endpoint string) fetchStart {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		e = &Entry{Key: key, Endpoint: endpoint}
		c.entries.Add(key, e)
		metrics.CacheEntries.Set(float64(c.entries.Len()))
	}
	e.Status = StatusLoading
	return fetchStart{generation: e.generation, epoch: c.epoch}
}

func (c *Cache) complete(key, endpoint string, start fetchStart, data any, tags []Tag, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	e, ok := c.entries.Peek(key)
	if !ok {
		e = &Entry{Key: key, Endpoint: endpoint, generation: start.generation}
		c.entries.Add(key, e)
	}
	c.unindex(key, e.Tags)
	e.Data = data
	e.HasData = true
	e.Tags = tags
	e.Status = StatusIdle
	e.Err = nil
	e.UpdatedAt = now
	e.StaleAt = now.Add(ttl)
	// An invalidation that raced the fetch keeps the entry marked so the
	// next read refetches. Tags not yet indexed when it ran are caught by
	// their epoch.
	e.Invalidated = e.generation != start.generation || c.invalidatedSince(tags, start.epoch)
	c.index(key, tags)
	metrics.CacheEntries.Set(float64(c.entries.Len()))
}

func (c *Cache) invalidatedSince(tags []Tag, epoch uint64) bool {
	for _, tag := range tags {
		if c.tagEpoch[tag] > epoch {
			return true
		}
	}
	return false
}

func (c *Cache) fail(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries.Peek(key); ok {
		e.Status = StatusError
		e.Err = err
	}
}

// Entry returns a copy of the cached entry for inspection.
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Invalidate marks every entry carrying any of the tags so that its next read
// refetches. It returns the number of entries affected.
func (c *Cache) Invalidate(tags ...Tag) int {
	return c.invalidate("manual", tags)
}

func (c *Cache) invalidate(mutation string, tags []Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(tags) > 0 {
		c.epoch++
	}
	seen := make(map[string]struct{})
	for _, tag := range tags {
		c.tagEpoch[tag] = c.epoch
		for key := range c.tagIndex[tag] {
			if _, done := seen[key]; done {
				continue
			}
			seen[key] = struct{}{}
			if e, ok := c.entries.Peek(key); ok {
				e.Invalidated = true
				e.generation++
			}
		}
	}
	if n := len(seen); n > 0 {
		c.invalidations.Add(uint64(n))
		metrics.CacheInvalidations.WithLabelValues(mutation).Add(float64(n))
		log.Debug().Str("mutation", mutation).Int("entries", n).Msg("cache entries invalidated")
	}
	return len(seen)
}

// Reset drops everything, e.g. when the user signs out.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.tagIndex = make(map[Tag]map[string]struct{})
	c.tagEpoch = make(map[Tag]uint64)
	metrics.CacheEntries.Set(0)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Coalesced:     c.coalesced.Load(),
		Errors:        c.errs.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// TTL exposes the staleness window applied to an entity.
func (c *Cache) TTL(entity string) time.Duration {
	return c.policy.TTL(entity)
}
