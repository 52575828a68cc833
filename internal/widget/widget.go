// Package widget holds the calendar widget's state and its load coordinator.
//
// A Widget owns one State. Handlers mutate it under a mutex, release the
// mutex across every store call, and commit results only while their request
// token is still current. Every committed change is followed by a call to
// the Renderer with a freshly derived View.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"schedview/internal/bounds"
	"schedview/internal/datekey"
	"schedview/internal/permalink"
	"schedview/internal/source"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Renderer receives a View after every state change. It is called with the
// widget lock held and must not call back into the Widget.
type Renderer interface {
	Render(View)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(View)

func (f RenderFunc) Render(v View) { f(v) }

// Options configures a Widget.
type Options struct {
	// Store serves events, calendars and post permalinks. Required.
	Store source.Catalog

	// Resolver looks up post permalinks. If nil and Store implements
	// source.PostResolver, Store is used.
	Resolver source.PostResolver

	Location *time.Location
	Clock    Clock
	Renderer Renderer
	Document Document
	Sizes    Sizes

	// Calendar is the initial calendar identifier; empty shows nothing.
	Calendar string
	// ShowTitle is the raw show-title attribute; nil means absent.
	ShowTitle   *string
	RenderStyle string
}

// Widget is one calendar widget instance.
type Widget struct {
	store    source.Catalog
	cache    *permalink.Cache
	loc      *time.Location
	clock    Clock
	renderer Renderer
	document Document
	sizes    Sizes

	mu       sync.Mutex
	st       State
	main     pipeline
	panel    pipeline
	release  func()
	attached bool
	closed   bool
}

// New creates a widget. Nothing is fetched until Attach.
func New(opts Options) *Widget {
	w := &Widget{
		store:    opts.Store,
		loc:      opts.Location,
		clock:    opts.Clock,
		renderer: opts.Renderer,
		document: opts.Document,
		sizes:    opts.Sizes.withDefaults(),
	}
	if w.loc == nil {
		w.loc = time.UTC
	}
	if w.clock == nil {
		w.clock = SystemClock{}
	}
	if w.renderer == nil {
		w.renderer = RenderFunc(func(View) {})
	}
	if w.document == nil {
		w.document = NewBus()
	}

	resolver := opts.Resolver
	if resolver == nil {
		if r, ok := opts.Store.(source.PostResolver); ok {
			resolver = r
		}
	}
	w.cache = permalink.NewCache(resolver)

	attrs := Attributes{
		Calendar:    strings.TrimSpace(opts.Calendar),
		ShowTitle:   ParseShowTitle(opts.ShowTitle),
		RenderStyle: ParseRenderStyle(opts.RenderStyle),
	}
	today := datekey.StartOfDay(w.now())
	w.st = State{
		Attrs:   attrs,
		Current: today,
		Title:   DefaultTitle,
	}
	w.st.MonthMin, w.st.MonthMax = bounds.Single(bounds.MonthOf(today)).Keys()
	return w
}

// Attach renders the initial view and starts the first load. Calling it
// again is a no-op.
func (w *Widget) Attach(ctx context.Context) {
	w.mu.Lock()
	if w.attached || w.closed {
		w.mu.Unlock()
		return
	}
	w.attached = true
	w.renderLocked()
	w.mu.Unlock()

	w.load(ctx)
}

// Close detaches the widget. In-flight requests are invalidated, the
// picker's document listeners are released and no further renders happen.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closePickerLocked()
	w.main.invalidate()
	w.panel.invalidate()
	w.closed = true
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.clone()
}

// View derives the current view without rendering.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Derive(w.st, w.now())
}

// Location returns the display location.
func (w *Widget) Location() *time.Location {
	return w.loc
}

func (w *Widget) now() time.Time {
	return w.clock.Now().In(w.loc)
}

func (w *Widget) renderLocked() {
	if w.closed {
		return
	}
	w.renderer.Render(Derive(w.st, w.now()))
}

// stillCurrent reports under the lock whether tok owns the pipeline.
func (w *Widget) stillCurrent(p *pipeline, tok uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return p.current(tok)
}
