package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "schedview/internal/log"
	"schedview/internal/render"
	"schedview/internal/widget"
)

// session is one live widget and the viewers of its renders.
type session struct {
	id     string
	widget *widget.Widget
	bus    *widget.Bus
	stream *stream

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// widgetParams are the attributes a session is created with.
type widgetParams struct {
	Calendar    string  `json:"calendar"`
	ShowTitle   *string `json:"showTitle,omitempty"`
	RenderStyle string  `json:"renderStyle,omitempty"`
}

// registry owns the live sessions.
type registry struct {
	newOptions func() widget.Options
	renderer   *render.Renderer
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func newRegistry(renderer *render.Renderer, newOptions func() widget.Options) *registry {
	return &registry{
		newOptions: newOptions,
		renderer:   renderer,
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
}

// create builds a session, registers it and attaches its widget. Attach
// blocks until the first load settles.
func (r *registry) create(ctx context.Context, p widgetParams) *session {
	sess := &session{
		id:     uuid.NewString(),
		bus:    widget.NewBus(),
		stream: newStream(),
	}
	sess.touch(r.now())

	opts := r.newOptions()
	opts.Calendar = p.Calendar
	opts.ShowTitle = p.ShowTitle
	opts.RenderStyle = p.RenderStyle
	opts.Document = sess.bus
	opts.Renderer = widget.RenderFunc(func(v widget.View) {
		html, err := r.renderer.FragmentString(v)
		if err != nil {
			appLog.Error("render fragment failed", err, "session", sess.id)
			return
		}
		sess.stream.publish(streamMessage{Type: "render", HTML: html, Ready: v.Ready})
	})
	sess.widget = widget.New(opts)

	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()

	appLog.Info("widget session created", "session", sess.id, "calendar", p.Calendar)
	sess.widget.Attach(ctx)
	return sess
}

// get returns the session and marks it as used.
func (r *registry) get(id string) (*session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		sess.touch(r.now())
	}
	return sess, ok
}

// remove tears the session down. It reports whether it existed.
func (r *registry) remove(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	sess.widget.Close()
	sess.stream.close()
	appLog.Info("widget session closed", "session", id)
	return true
}

func (r *registry) all() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// evictIdle removes sessions without viewers that were not used for idle.
func (r *registry) evictIdle(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-idle)
	n := 0
	for _, sess := range r.all() {
		if sess.stream.viewers() == 0 && sess.idleSince().Before(cutoff) {
			if r.remove(sess.id) {
				n++
			}
		}
	}
	return n
}

func (r *registry) closeAll() {
	for _, sess := range r.all() {
		r.remove(sess.id)
	}
}
