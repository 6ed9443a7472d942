// Package callsign normalizes, validates, and compares amateur radio callsigns
// typed by the operator or loaded from caller pools.
package callsign

import (
	"container/list"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

var callsignPattern = regexp.MustCompile(`^[A-Z0-9]+(?:/[A-Z0-9]+)*$`)

// normalizeCache is a bounded LRU so hot strings typed repeatedly during a
// pileup skip the normalization work.
type normalizeCache struct {
	mu       sync.Mutex
	lru      *list.List
	entries  map[string]*list.Element
	capacity int
}

type cacheEntry struct {
	key   string
	value string
}

func newNormalizeCache(capacity int) *normalizeCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &normalizeCache{
		lru:      list.New(),
		entries:  make(map[string]*list.Element, capacity),
		capacity: capacity,
	}
}

func (c *normalizeCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(cacheEntry).value, true
}

func (c *normalizeCache) add(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		elem.Value = cacheEntry{key: key, value: value}
		c.lru.MoveToFront(elem)
		return
	}
	c.entries[key] = c.lru.PushFront(cacheEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(cacheEntry).key)
		}
	}
}

var cache = newNormalizeCache(2048)

// Normalize uppercases the string, trims whitespace, drops embedded blanks,
// maps '.' to '/' and removes a trailing slash.
func Normalize(call string) string {
	if cached, ok := cache.get(call); ok {
		return cached
	}
	normalized := strings.ToUpper(strings.TrimSpace(call))
	normalized = strings.Join(strings.Fields(normalized), "")
	normalized = strings.ReplaceAll(normalized, ".", "/")
	normalized = strings.TrimSuffix(normalized, "/")
	cache.add(call, normalized)
	return normalized
}

// IsValid applies format checks to make sure the string looks like an amateur
// callsign: 3-10 characters, at least one letter and one digit, letters,
// digits and '/' only.
func IsValid(call string) bool {
	call = Normalize(call)
	if len(call) < 3 || len(call) > 10 {
		return false
	}
	if strings.IndexFunc(call, unicode.IsDigit) < 0 {
		return false
	}
	if strings.IndexFunc(call, unicode.IsLetter) < 0 {
		return false
	}
	return callsignPattern.MatchString(call)
}

// CallArea returns the first digit in the callsign, or 0 when none exists.
func CallArea(call string) byte {
	for i := 0; i < len(call); i++ {
		if call[i] >= '0' && call[i] <= '9' {
			return call[i]
		}
	}
	return 0
}
