// Package cache provides the bounded caches used on the decision path.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Policy selects which entry is evicted when a full cache receives a new key.
type Policy string

const (
	// LRU evicts the least recently used entry.
	LRU Policy = "lru"
	// LFU evicts the entry with the lowest access count, oldest first on ties.
	// Counts never decay, so an entry read often in the past can outlive
	// entries that are hot now.
	LFU Policy = "lfu"
)

const DefaultCapacity = 1024

// ParsePolicy accepts "lru" or "lfu", empty selects LRU.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LRU:
		return LRU, nil
	case LFU:
		return LFU, nil
	}
	return "", fmt.Errorf("cache: unknown eviction policy %q", s)
}

type options struct {
	policy Policy
}

type Option func(opts *options)

func PolicyOption(policy Policy) Option {
	return func(opts *options) {
		opts.policy = policy
	}
}

type entry[K comparable, V any] struct {
	key         K
	value       V
	accessCount uint64
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Len       int    `json:"len"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Cache is a bounded map guarded by a single mutex.
// Inserting a new key into a full cache evicts exactly one entry first.
type Cache[K comparable, V any] struct {
	capacity int
	policy   Policy

	mu    sync.Mutex
	items map[K]*list.Element
	// front is the most recently used entry under LRU and the newest insertion under LFU.
	ll *list.List

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func New[K comparable, V any](capacity int, opts ...Option) *Cache[K, V] {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.policy == "" {
		options.policy = LRU
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Cache[K, V]{
		capacity: capacity,
		policy:   options.policy,
		items:    make(map[K]*list.Element, capacity),
		ll:       list.New(),
	}
}

func (c *Cache[K, V]) Get(key K) (v V, ok bool) {
	c.mu.Lock()
	el, found := c.items[key]
	if found {
		e := el.Value.(*entry[K, V])
		e.accessCount++
		if c.policy == LRU {
			c.ll.MoveToFront(el)
		}
		v, ok = e.value, true
	}
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return
}

// Put inserts or replaces the value for key.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		if c.policy == LRU {
			c.ll.MoveToFront(el)
		}
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evict()
	}
	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value})
}

func (c *Cache[K, V]) evict() {
	var victim *list.Element
	switch c.policy {
	case LFU:
		// walk from the oldest insertion so ties go to the oldest entry
		for el := c.ll.Back(); el != nil; el = el.Prev() {
			if victim == nil ||
				el.Value.(*entry[K, V]).accessCount < victim.Value.(*entry[K, V]).accessCount {
				victim = el
			}
		}
	default:
		victim = c.ll.Back()
	}
	if victim == nil {
		return
	}
	c.ll.Remove(victim)
	delete(c.items, victim.Value.(*entry[K, V]).key)
	c.evictions.Add(1)
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Purge removes every entry, counters are kept.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element, c.capacity)
	c.ll.Init()
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ll.Len()
}

func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

func (c *Cache[K, V]) Policy() Policy {
	return c.policy
}

// Keys returns the keys from front to back, see Cache.ll for the order.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
