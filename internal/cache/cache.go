// Package cache provides the TTL caches sitting in front of the notification
// read path: the type catalog (1h), aggregate statistics (15m) and per-user
// unread counts (5m). Entries self-expire; writes that change the underlying
// truth invalidate explicitly through the service layer.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	TypesTTL       = time.Hour
	StatsTTL       = 15 * time.Minute
	UnreadCountTTL = 5 * time.Minute
)

// TTLCache is a keyed store with a per-cache default time-to-live. An entry
// older than the TTL is never returned as a hit. Growth is unbounded; keys
// are bounded by the user population.
type TTLCache struct {
	store *gocache.Cache
}

// New creates a cache whose entries expire ttl after being set. Expired
// entries are also swept in the background.
func New(ttl time.Duration) *TTLCache {
	return &TTLCache{store: gocache.New(ttl, 2*ttl)}
}

func (c *TTLCache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *TTLCache) Set(key string, value interface{}) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

func (c *TTLCache) Delete(key string) {
	c.store.Delete(key)
}

// DeletePrefix drops every entry whose key starts with prefix. Used to clear
// a user's statistics entries across all cached periods.
func (c *TTLCache) DeletePrefix(prefix string) {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
}

func (c *TTLCache) Clear() {
	c.store.Flush()
}

// ItemCount reports live entries, expired ones included until swept.
func (c *TTLCache) ItemCount() int {
	return c.store.ItemCount()
}

// Key joins parts into a cache key: Key("stats", "user", id) -> "stats:user:<id>".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Caches bundles the three notification caches.
type Caches struct {
	Types       *TTLCache
	Stats       *TTLCache
	UnreadCount *TTLCache
}

func NewCaches() *Caches {
	return &Caches{
		Types:       New(TypesTTL),
		Stats:       New(StatsTTL),
		UnreadCount: New(UnreadCountTTL),
	}
}

// ClearNotificationCaches drops all statistics and unread-count entries.
// Called when a notification is created or deleted; the type catalog only
// expires, it is never invalidated by writes.
func (c *Caches) ClearNotificationCaches() {
	c.Stats.Clear()
	c.UnreadCount.Clear()
}
