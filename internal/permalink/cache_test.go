package permalink_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/model"
	"schedview/internal/permalink"
	"schedview/internal/source"
)

// countingResolver answers from a fixed table and counts calls per post.
type countingResolver struct {
	mu    sync.Mutex
	calls map[string]int
	links map[string]string
	errs  map[string]error
}

func newCountingResolver() *countingResolver {
	return &countingResolver{
		calls: make(map[string]int),
		links: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (r *countingResolver) LookupPermalink(_ context.Context, postID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[postID]++
	if err, ok := r.errs[postID]; ok {
		return "", err
	}
	if link, ok := r.links[postID]; ok {
		return link, nil
	}
	return "", source.ErrNotFound
}

func (r *countingResolver) count(postID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[postID]
}

func TestHydrate_SharedPostLookedUpOnce(t *testing.T) {
	res := newCountingResolver()
	res.links["post-a"] = "archives/a"
	cache := permalink.NewCache(res)

	events := []model.Event{
		{Title: "one", RelatedPostID: "post-a"},
		{Title: "two", RelatedPostID: "post-a"},
	}
	cache.Hydrate(context.Background(), events)

	assert.Equal(t, 1, res.count("post-a"))
	assert.Equal(t, "/archives/a", events[0].RelatedPostPermalink)
	assert.Equal(t, events[0].RelatedPostPermalink, events[1].RelatedPostPermalink)

	v, ok := cache.Get("post-a")
	require.True(t, ok)
	assert.Equal(t, "/archives/a", v)
}

func TestHydrate_UsesCacheAcrossLoads(t *testing.T) {
	res := newCountingResolver()
	res.links["post-a"] = "https://example.com/a"
	cache := permalink.NewCache(res)

	cache.Hydrate(context.Background(), []model.Event{{RelatedPostID: "post-a"}})
	later := []model.Event{{RelatedPostID: "post-a"}}
	cache.Hydrate(context.Background(), later)

	assert.Equal(t, 1, res.count("post-a"))
	assert.Equal(t, "https://example.com/a", later[0].RelatedPostPermalink)
}

func TestHydrate_FailuresRecordEmpty(t *testing.T) {
	res := newCountingResolver()
	res.errs["broken"] = errors.New("connection reset")
	res.links["fine"] = "/fine"
	cache := permalink.NewCache(res)

	events := []model.Event{
		{RelatedPostID: "broken"},
		{RelatedPostID: "missing"},
		{RelatedPostID: "fine"},
	}
	cache.Hydrate(context.Background(), events)

	assert.Empty(t, events[0].RelatedPostPermalink)
	assert.Empty(t, events[1].RelatedPostPermalink)
	assert.Equal(t, "/fine", events[2].RelatedPostPermalink)

	assert.True(t, cache.Has("broken"))
	assert.True(t, cache.Has("missing"))
	assert.Equal(t, 3, cache.Len())

	// Not retried on the next load.
	cache.Hydrate(context.Background(), []model.Event{{RelatedPostID: "broken"}})
	assert.Equal(t, 1, res.count("broken"))
}

func TestHydrate_SkipsEventsWithPermalinkOrNoPost(t *testing.T) {
	res := newCountingResolver()
	cache := permalink.NewCache(res)

	events := []model.Event{
		{RelatedPostID: "post-a", RelatedPostPermalink: "/already"},
		{Title: "no post"},
	}
	cache.Hydrate(context.Background(), events)

	assert.Equal(t, 0, res.count("post-a"))
	assert.Equal(t, "/already", events[0].RelatedPostPermalink)
	assert.False(t, cache.Has("post-a"))
}

// gatedResolver blocks every lookup until all expected posts have arrived,
// which only succeeds if lookups run concurrently.
type gatedResolver struct {
	arrived chan string
	release chan struct{}
}

func (g *gatedResolver) LookupPermalink(_ context.Context, postID string) (string, error) {
	g.arrived <- postID
	<-g.release
	return "/" + postID, nil
}

func TestHydrate_FansOutConcurrently(t *testing.T) {
	g := &gatedResolver{arrived: make(chan string, 3), release: make(chan struct{})}
	cache := permalink.NewCache(g)

	events := []model.Event{{RelatedPostID: "a"}, {RelatedPostID: "b"}, {RelatedPostID: "c"}}
	done := make(chan struct{})
	go func() {
		cache.Hydrate(context.Background(), events)
		close(done)
	}()

	for range 3 {
		select {
		case <-g.arrived:
		case <-time.After(2 * time.Second):
			t.Fatal("lookups were not issued concurrently")
		}
	}
	close(g.release)
	<-done

	assert.Equal(t, "/a", events[0].RelatedPostPermalink)
	assert.Equal(t, "/b", events[1].RelatedPostPermalink)
	assert.Equal(t, "/c", events[2].RelatedPostPermalink)
}

func TestHydrate_CancelledCallerStillCachesResult(t *testing.T) {
	res := newCountingResolver()
	res.links["post-a"] = "/a"
	cache := permalink.NewCache(res)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := []model.Event{{RelatedPostID: "post-a"}}
	cache.Hydrate(ctx, events)

	v, ok := cache.Get("post-a")
	require.True(t, ok)
	assert.Equal(t, "/a", v)
}

func TestNilResolverCachesEmpty(t *testing.T) {
	cache := permalink.NewCache(nil)
	events := []model.Event{{RelatedPostID: "x"}}
	cache.Hydrate(context.Background(), events)
	assert.True(t, cache.Has("x"))
	assert.Empty(t, events[0].RelatedPostPermalink)
}
