package widget_test

import (
	"context"
	"sync"
	"time"

	"schedview/internal/model"
	"schedview/internal/source"
	"schedview/internal/widget"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// fakeStore serves canned data. eventsFn, when set, overrides events.
type fakeStore struct {
	mu            sync.Mutex
	calendars     []model.Calendar
	calendarsErr  error
	events        []model.Event
	eventsFn      func(ctx context.Context, q source.EventQuery) ([]model.Event, error)
	permalinks    map[string]string
	queries       []source.EventQuery
	calendarCalls int
	lookups       int
}

func (s *fakeStore) ListEvents(ctx context.Context, q source.EventQuery) ([]model.Event, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	fn := s.eventsFn
	events := model.CloneEvents(s.events)
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, q)
	}
	return events, nil
}

func (s *fakeStore) ListCalendars(ctx context.Context, page, size int) ([]model.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendarCalls++
	if s.calendarsErr != nil {
		return nil, s.calendarsErr
	}
	return append([]model.Calendar(nil), s.calendars...), nil
}

func (s *fakeStore) LookupPermalink(ctx context.Context, postID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	link, ok := s.permalinks[postID]
	if !ok {
		return "", source.ErrNotFound
	}
	return link, nil
}

func (s *fakeStore) setEventsFn(fn func(ctx context.Context, q source.EventQuery) ([]model.Event, error)) {
	s.mu.Lock()
	s.eventsFn = fn
	s.mu.Unlock()
}

func (s *fakeStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func (s *fakeStore) lastQuery() source.EventQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func (s *fakeStore) calendarCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calendarCalls
}

type recorder struct {
	mu    sync.Mutex
	views []widget.View
}

func (r *recorder) Render(v widget.View) {
	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recorder) last() widget.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

var march15 = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func newWidget(store *fakeStore, calendar string, opts ...func(*widget.Options)) (*widget.Widget, *recorder, *widget.Bus) {
	rec := &recorder{}
	bus := widget.NewBus()
	o := widget.Options{
		Store:    store,
		Location: time.UTC,
		Clock:    fixedClock{march15},
		Renderer: rec,
		Document: bus,
		Calendar: calendar,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return widget.New(o), rec, bus
}
