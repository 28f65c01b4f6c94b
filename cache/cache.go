// Package cache provides a bounded content cache for tool outputs.
//
// Entries are keyed by a typed namespace plus subject, expire on a
// per-namespace TTL, are evicted in strict least-recently-used order when
// the capacity bound is hit, and can carry a content hash that invalidates
// the entry the moment a caller observes a different hash for the same
// subject. Staleness only ever costs a redundant tool round trip; the
// persistence layer remains the source of truth.
//
// Information Hiding:
// - LRU bookkeeping hidden behind the operation set
// - Expiry is lazy and internal; callers never see expired values
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Namespace classifies cached content. The set is closed: TTLs derive from
// the namespace so callers cannot under- or over-cache a class of data.
type Namespace string

const (
	// NamespaceFile caches file contents keyed by path.
	NamespaceFile Namespace = "file"
	// NamespaceStructure caches rendered project trees keyed by project.
	NamespaceStructure Namespace = "structure"
	// NamespaceDiagnostics caches per-file diagnostic scans.
	NamespaceDiagnostics Namespace = "diagnostics"
)

// TTL returns the time-to-live for entries in this namespace.
func (n Namespace) TTL() time.Duration {
	switch n {
	case NamespaceDiagnostics:
		return time.Minute
	default:
		return 5 * time.Minute
	}
}

// Key uniquely identifies cached content with type safety.
// Structured keys prevent namespace collisions from raw string concatenation.
type Key struct {
	Namespace Namespace
	Subject   string
}

// String returns the canonical string representation.
func (k Key) String() string {
	return string(k.Namespace) + ":" + k.Subject
}

// FileKey creates a key for cached file contents.
func FileKey(path string) Key {
	return Key{Namespace: NamespaceFile, Subject: path}
}

// StructureKey creates a key for a project's rendered structure.
func StructureKey(projectID string) Key {
	return Key{Namespace: NamespaceStructure, Subject: projectID}
}

// DiagnosticsKey creates a key for a file's diagnostics.
func DiagnosticsKey(path string) Key {
	return Key{Namespace: NamespaceDiagnostics, Subject: path}
}

// DefaultCapacity is the default entry bound.
const DefaultCapacity = 500

type entry struct {
	key       Key
	value     string
	hash      string
	expiresAt time.Time
}

// Cache is a bounded TTL + hash-invalidated LRU cache.
// Safe for concurrent use by parallel tool executions.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	now func() time.Time // test seam
}

// New creates a cache with the given capacity.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value for key. Expired entries are treated as
// absent and removed as a side effect. A hit resets recency.
func (c *Cache) Get(key Key) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key.String()]
	if !ok {
		return "", false
	}

	e := elem.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeLocked(elem)
		return "", false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

// Set stores a value under key, resetting recency and TTL. Inserting past
// capacity evicts the single least-recently-used entry first.
func (c *Cache) Set(key Key, value string) {
	c.SetHashed(key, value, "")
}

// SetHashed stores a value tagged with a content hash for later validation.
func (c *Cache) SetHashed(key Key, value, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(key.Namespace.TTL())

	if elem, ok := c.entries[key.String()]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.hash = hash
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	elem := c.order.PushFront(&entry{key: key, value: value, hash: hash, expiresAt: expiresAt})
	c.entries[key.String()] = elem
}

// IsValid reports whether the entry under key is present, unexpired, and
// tagged with currentHash. A stored hash that disagrees with currentHash
// marks the entry stale and purges it immediately, even before expiry.
func (c *Cache) IsValid(key Key, currentHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key.String()]
	if !ok {
		return false
	}

	e := elem.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeLocked(elem)
		return false
	}
	if e.hash != currentHash {
		c.removeLocked(elem)
		return false
	}
	return true
}

// InvalidateByPath removes every entry whose subject is path, across all
// namespaces. Returns the number of entries removed.
func (c *Cache) InvalidateByPath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeMatchingLocked(func(e *entry) bool {
		return e.key.Subject == path
	})
}

// InvalidateByHash removes entries for path whose stored hash differs from
// newHash. Returns the number of entries removed.
func (c *Cache) InvalidateByHash(path, newHash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeMatchingLocked(func(e *entry) bool {
		return e.key.Subject == path && e.hash != newHash
	})
}

// InvalidateByType removes every entry in the given namespace.
// Returns the number of entries removed.
func (c *Cache) InvalidateByType(ns Namespace) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeMatchingLocked(func(e *entry) bool {
		return e.key.Namespace == ns
	})
}

// Prune removes every expired entry and returns the count removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	return c.removeMatchingLocked(func(e *entry) bool {
		return now.After(e.expiresAt)
	})
}

// Len returns the number of live entries, counting expired ones until they
// are observed or pruned.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, e.key.String())
}

func (c *Cache) removeMatchingLocked(match func(*entry) bool) int {
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if match(elem.Value.(*entry)) {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	return removed
}
