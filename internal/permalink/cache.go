// Package permalink memoizes related-post permalink lookups and merges the
// results into event records.
package permalink

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	appLog "schedview/internal/log"
	"schedview/internal/model"
	"schedview/internal/source"
)

// Cache maps post identifiers to resolved permalinks. An empty string means
// the post was looked up and has no permalink. Entries are never evicted.
type Cache struct {
	resolver source.PostResolver

	mu      sync.RWMutex
	entries map[string]string

	// flights collapses identical lookups issued by overlapping loads.
	flights singleflight.Group
}

// NewCache creates an empty cache backed by resolver.
func NewCache(resolver source.PostResolver) *Cache {
	return &Cache{
		resolver: resolver,
		entries:  make(map[string]string),
	}
}

// Get returns the cached permalink and whether the post was ever resolved.
func (c *Cache) Get(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

// Has distinguishes "resolved to empty" from "never looked up".
func (c *Cache) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Len returns the number of resolved posts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) put(id, permalink string) {
	c.mu.Lock()
	c.entries[id] = permalink
	c.mu.Unlock()
}

// Hydrate fills RelatedPostPermalink on every event that references a post
// but carries no permalink yet. Cached posts are applied immediately; each
// distinct missing post is looked up once, concurrently, and its result is
// cached before any event is updated from it. Lookup failures are logged and
// cached as "" so they never block other events.
func (c *Cache) Hydrate(ctx context.Context, events []model.Event) {
	if len(events) == 0 {
		return
	}

	var missing []string
	seen := make(map[string]struct{})
	for i := range events {
		ev := &events[i]
		if ev.RelatedPostID == "" || ev.RelatedPostPermalink != "" {
			continue
		}
		if v, ok := c.Get(ev.RelatedPostID); ok {
			ev.RelatedPostPermalink = model.NormalizePermalink(v)
			continue
		}
		if _, dup := seen[ev.RelatedPostID]; !dup {
			seen[ev.RelatedPostID] = struct{}{}
			missing = append(missing, ev.RelatedPostID)
		}
	}

	if len(missing) > 0 {
		// resolve records failures as empty links, so the group never fails.
		var g errgroup.Group
		for _, id := range missing {
			g.Go(func() error {
				c.resolve(ctx, id)
				return nil
			})
		}
		g.Wait()
	}

	for i := range events {
		ev := &events[i]
		if ev.RelatedPostID == "" || ev.RelatedPostPermalink != "" {
			continue
		}
		v, _ := c.Get(ev.RelatedPostID)
		ev.RelatedPostPermalink = model.NormalizePermalink(v)
	}
}

// resolve looks up one post and records the outcome. The lookup runs
// detached from ctx's cancellation so a superseded load cannot poison the
// entry shared with a concurrent one.
func (c *Cache) resolve(ctx context.Context, id string) {
	if c.Has(id) {
		return
	}
	lookupCtx := context.WithoutCancel(ctx)
	_, _, _ = c.flights.Do(id, func() (any, error) {
		if c.Has(id) {
			return nil, nil
		}
		if c.resolver == nil {
			c.put(id, "")
			return nil, nil
		}
		permalink, err := c.resolver.LookupPermalink(lookupCtx, id)
		switch {
		case err == nil:
			c.put(id, model.NormalizePermalink(permalink))
		case errors.Is(err, source.ErrNotFound):
			c.put(id, "")
		default:
			appLog.Error("permalink lookup failed", err, "post", id)
			c.put(id, "")
		}
		return nil, nil
	})
}
