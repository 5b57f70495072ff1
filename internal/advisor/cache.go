package advisor

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InsightTTL время жизни закешированного совета.
const InsightTTL = 6 * time.Hour

type cacheEntry struct {
	value     Insight
	expiresAt time.Time
}

type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache хранит готовые советы по ключу пользователь|месяц|язык.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
	hits    int64
	misses  int64
}

// NewCache создает кеш; ttl <= 0 означает InsightTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = InsightTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// CacheKey формирует ключ кеша.
func CacheKey(userID uuid.UUID, month, language string) string {
	return strings.Join([]string{userID.String(), month, language}, "|")
}

// Get возвращает копию значения, только если срок его жизни еще не истек.
func (c *Cache) Get(key string) (Insight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !entry.expiresAt.After(c.now()) {
		c.misses++
		return Insight{}, false
	}
	c.hits++
	return entry.value.Clone(), true
}

// Set сохраняет копию значения, заменяя прежнее.
func (c *Cache) Set(key string, value Insight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{value: value.Clone(), expiresAt: c.now().Add(c.ttl)}
}

// Sweep удаляет просроченные записи и возвращает их количество.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear очищает кеш и счетчики.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
	c.hits = 0
	c.misses = 0
}

// Stats возвращает счетчики попаданий и промахов.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
