package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/cache"
)

// Service is the catalog capability consumed by the admin surface; *Client
// and *Cached both implement it.
type Service interface {
	Search(ctx context.Context, query string, limit, offset int) (*SearchResult, error)
	Subject(ctx context.Context, slug string, limit int) (*SubjectList, error)
}

// Cached is a read-through cache in front of the catalog client. Entries are
// valid while they carry the current cache version and are younger than
// their TTL; a book-scoped invalidation drops everything at once. Search
// results and curated subject lists age on separate TTLs — lists move much
// more slowly than the search index.
type Cached struct {
	client    Service
	caches    *cache.Manager
	searchTTL time.Duration
	listTTL   time.Duration

	mu         sync.Mutex
	searches   map[string]cache.Entry[*SearchResult]
	lists      map[string]cache.Entry[*SubjectList]
	unregister func()
}

// NewCached wraps client with a read-through cache registered on the manager
// under the book scope.
func NewCached(client Service, caches *cache.Manager, searchTTL, listTTL time.Duration) *Cached {
	c := &Cached{
		client:    client,
		caches:    caches,
		searchTTL: searchTTL,
		listTTL:   listTTL,
		searches:  make(map[string]cache.Entry[*SearchResult]),
		lists:     make(map[string]cache.Entry[*SubjectList]),
	}
	c.unregister = caches.Register("catalog", cache.ScopeBook, c.clear)
	return c
}

// Close removes the cache from the invalidation registry.
func (c *Cached) Close() {
	if c.unregister != nil {
		c.unregister()
	}
}

// Search serves from cache when the entry is still valid, otherwise fetches
// through the underlying client and caches the result.
func (c *Cached) Search(ctx context.Context, query string, limit, offset int) (*SearchResult, error) {
	key := fmt.Sprintf("%s|%d|%d", query, limit, offset)

	c.mu.Lock()
	entry, ok := c.searches[key]
	c.mu.Unlock()
	if ok && entry.Valid(c.caches, c.searchTTL) {
		return entry.Data, nil
	}

	result, err := c.client.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.searches[key] = cache.NewEntry(c.caches, key, result)
	c.mu.Unlock()
	return result, nil
}

// Subject serves curated subject lists through the same read-through cache,
// aged on the list TTL.
func (c *Cached) Subject(ctx context.Context, slug string, limit int) (*SubjectList, error) {
	key := fmt.Sprintf("%s|%d", slug, limit)

	c.mu.Lock()
	entry, ok := c.lists[key]
	c.mu.Unlock()
	if ok && entry.Valid(c.caches, c.listTTL) {
		return entry.Data, nil
	}

	list, err := c.client.Subject(ctx, slug, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lists[key] = cache.NewEntry(c.caches, key, list)
	c.mu.Unlock()
	return list, nil
}

// clear drops every cached page and list. Runs on the invalidating goroutine.
func (c *Cached) clear() {
	c.mu.Lock()
	c.searches = make(map[string]cache.Entry[*SearchResult])
	c.lists = make(map[string]cache.Entry[*SubjectList])
	c.mu.Unlock()
}
