package namecache

import (
	"container/list"
	"net"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/indigo-web/utils/uf"
)

// entry is the value tracked in both the MRU list and the TTL cache.
type entry struct {
	key string
	ip  net.IP
}

// Cache is a bounded-capacity, least-recently-used cache mapping host
// names to resolved IPv4 addresses, with per-entry time-to-live.
//
// TTL expiry is delegated to an underlying go-cache instance; capacity
// eviction is done by Cache itself via an MRU list, since go-cache has
// no notion of a maximum entry count.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	backing  *gocache.Cache
	mru      *list.List
	index    map[string]*list.Element
}

// New creates a Cache holding at most capacity entries, each valid for
// ttl after insertion.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		backing:  gocache.New(ttl, ttl),
		mru:      list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Get looks up name (matched case-insensitively, without copying it)
// and, if present and unexpired, promotes it to most-recently-used and
// returns its address. The bool result is false on a miss or expiry.
//
// name may reference memory the caller owns only for the duration of
// the call; Get never retains it.
func (c *Cache) Get(name []byte) (net.IP, bool) {
	key := normalize(uf.B2S(name))

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, false
	}

	if _, fresh := c.backing.Get(key); !fresh {
		c.evict(elem)
		return nil, false
	}

	c.mru.MoveToFront(elem)
	return elem.Value.(*entry).ip, true
}

// Insert stores (or refreshes) name → ip, resetting its TTL and
// promoting it to most-recently-used. If the cache is at capacity and
// name is new, the least-recently-used entry is evicted first. A cache
// created with capacity 0 is disabled: Insert stores nothing.
func (c *Cache) Insert(name []byte, ip net.IP) {
	if c.capacity <= 0 {
		return
	}
	key := normalize(string(name))

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		elem.Value.(*entry).ip = ip
		c.backing.Set(key, struct{}{}, c.ttl)
		c.mru.MoveToFront(elem)
		return
	}

	if c.capacity > 0 && len(c.index) >= c.capacity {
		lru := c.mru.Back()
		if lru != nil {
			c.evict(lru)
		}
	}

	e := &entry{key: key, ip: ip}
	elem := c.mru.PushFront(e)
	c.index[key] = elem
	c.backing.Set(key, struct{}{}, c.ttl)
}

// Len reports the number of indexed entries. An expired entry still
// counts until a Get or an Insert evicts it.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// evict removes elem from both the MRU list, the index and the backing
// TTL store. Callers must hold c.mu.
func (c *Cache) evict(elem *list.Element) {
	e := elem.Value.(*entry)
	c.mru.Remove(elem)
	delete(c.index, e.key)
	c.backing.Delete(e.key)
}

func normalize(s string) string {
	return strings.ToLower(s)
}
