package ics

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"schedview/internal/datekey"
	appLog "schedview/internal/log"
	"schedview/internal/model"
	"schedview/internal/source"
)

// DefaultTTL is how long a parsed feed is reused before refetching.
const DefaultTTL = time.Minute

// Catalog implements source.Store over a fixed set of feeds.
type Catalog struct {
	fetcher *Fetcher
	feeds   []Feed
	loc     *time.Location
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]cachedFeed
	flights singleflight.Group
}

type cachedFeed struct {
	data      *feedData
	fetchedAt time.Time
}

var _ source.Store = (*Catalog)(nil)

// NewCatalog creates a catalog. Floating feed times are read in loc.
func NewCatalog(fetcher *Fetcher, feeds []Feed, loc *time.Location, ttl time.Duration) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		fetcher: fetcher,
		feeds:   slices.Clone(feeds),
		loc:     loc,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedFeed),
	}
}

// Invalidate drops parsed feeds so the next request refetches them.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

func (c *Catalog) feed(id string) (Feed, bool) {
	for _, f := range c.feeds {
		if f.ID == id {
			return f, true
		}
	}
	return Feed{}, false
}

// load returns the parsed feed, fetching at most once per TTL. Concurrent
// callers share one fetch.
func (c *Catalog) load(ctx context.Context, feed Feed) (*feedData, error) {
	c.mu.Lock()
	entry, ok := c.entries[feed.ID]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.data, nil
	}

	v, err, _ := c.flights.Do(feed.ID, func() (any, error) {
		res, err := c.fetcher.Fetch(context.WithoutCancel(ctx), feed)
		if err != nil {
			return nil, err
		}
		data, err := parseFeed(feed, res.Body, c.loc)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", feed.ID, err)
		}
		c.mu.Lock()
		c.entries[feed.ID] = cachedFeed{data: data, fetchedAt: c.now()}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*feedData), nil
}

// ListEvents expands q.Calendar's feed into [q.From, q.To], sorted by start.
func (c *Catalog) ListEvents(ctx context.Context, q source.EventQuery) ([]model.Event, error) {
	feed, ok := c.feed(q.Calendar)
	if !ok {
		return nil, fmt.Errorf("calendar %q: %w", q.Calendar, source.ErrNotFound)
	}
	data, err := c.load(ctx, feed)
	if err != nil {
		return nil, err
	}

	from, to := datekey.ISO(q.From), datekey.ISO(q.To)
	var events []model.Event
	for _, occ := range expand(data.Events, q.From, q.To) {
		ev := occ.toEvent()
		if matchesWindow(ev, from, to) {
			events = append(events, ev)
		}
	}
	slices.SortStableFunc(events, func(a, b model.Event) int {
		return strings.Compare(a.StartAt, b.StartAt)
	})
	return page(events, q.Page, q.Size), nil
}

// ListCalendars lists one page of feeds with their range statistics. Feeds
// that cannot be loaded are listed without statistics.
func (c *Catalog) ListCalendars(ctx context.Context, pageNo, size int) ([]model.Calendar, error) {
	feeds := page(c.feeds, pageNo, size)
	out := make([]model.Calendar, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			cal := model.Calendar{ID: feed.ID, DisplayName: feed.Name, Visible: true}
			data, err := c.load(gctx, feed)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				appLog.Error("ics feed unavailable", err, "feed", feed.ID)
			} else {
				if cal.DisplayName == "" {
					cal.DisplayName = data.Name
				}
				cal.MinMonth, cal.MaxMonth, cal.RangeEndDate = stats(data.Events)
			}
			out[i] = cal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LookupPermalink always misses: feed events carry their URL directly.
func (c *Catalog) LookupPermalink(_ context.Context, postID string) (string, error) {
	return "", fmt.Errorf("post %q: %w", postID, source.ErrNotFound)
}

// stats computes the earliest start month, the latest end month and the
// latest end day over every instance of the feed.
func stats(events []vevent) (minMonth, maxMonth, endDate string) {
	var first, last time.Time
	for _, ev := range events {
		instance := occurrence{ev: ev, start: ev.Start, end: lastEnd(ev)}.toEvent()
		start, ok := datekey.ParseISO(instance.StartAt)
		if !ok {
			continue
		}
		end := start
		if t, ok := datekey.ParseISO(instance.EndAt); ok {
			end = t
		}
		if first.IsZero() || start.Before(first) {
			first = start
		}
		if last.IsZero() || end.After(last) {
			last = end
		}
	}
	if first.IsZero() {
		return "", "", ""
	}
	return first.UTC().Format("2006-01"), last.UTC().Format("2006-01"), datekey.DayKeyUTC(last)
}

// page returns the 1-based page of items; size <= 0 returns everything.
func page[T any](items []T, pageNo, size int) []T {
	if size <= 0 {
		return items
	}
	if pageNo < 1 {
		pageNo = 1
	}
	start := (pageNo - 1) * size
	if start >= len(items) {
		return nil
	}
	return items[start:min(start+size, len(items))]
}
