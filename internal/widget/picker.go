package widget

import (
	"context"
	"sync"

	"schedview/internal/bounds"
)

// DocumentEvent is an input event observed outside the widget.
type DocumentEvent struct {
	Type   string `json:"type"` // "click" or "keydown"
	Key    string `json:"key,omitempty"`
	Inside bool   `json:"inside,omitempty"` // target lies within the widget
}

// Document delivers page-level events to subscribers.
type Document interface {
	// Subscribe registers fn and returns a func that removes it. The
	// returned func is safe to call more than once.
	Subscribe(fn func(DocumentEvent)) (release func())
}

// Bus is an in-process Document.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(DocumentEvent)
}

var _ Document = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(DocumentEvent))}
}

func (b *Bus) Subscribe(fn func(DocumentEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Dispatch delivers ev to every current subscriber and returns how many
// received it. Subscribers run outside the bus lock and may unsubscribe.
func (b *Bus) Dispatch(ev DocumentEvent) int {
	b.mu.Lock()
	fns := make([]func(DocumentEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return len(fns)
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// OpenPicker opens the month picker and starts listening for outside clicks
// and Escape.
func (w *Widget) OpenPicker() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.st.PickerOpen {
		return
	}
	w.st.PickerOpen = true
	cur := bounds.MonthOf(w.st.Current)
	w.st.PickerDraft = bounds.Clamp(cur.Year, cur.Month, w.st.Bounds())
	w.release = w.document.Subscribe(w.onDocument)
	w.renderLocked()
}

// ClosePicker closes the month picker. Closing a closed picker is a no-op.
func (w *Widget) ClosePicker() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.st.PickerOpen {
		return
	}
	w.closePickerLocked()
	w.renderLocked()
}

// TogglePicker opens a closed picker and closes an open one.
func (w *Widget) TogglePicker() {
	w.mu.Lock()
	open := w.st.PickerOpen
	w.mu.Unlock()
	if open {
		w.ClosePicker()
	} else {
		w.OpenPicker()
	}
}

// closePickerLocked is the only place document listeners are released.
func (w *Widget) closePickerLocked() {
	w.st.PickerOpen = false
	w.st.PickerDraft = bounds.Month{}
	if w.release != nil {
		w.release()
		w.release = nil
	}
}

func (w *Widget) onDocument(ev DocumentEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.st.PickerOpen {
		return
	}
	switch {
	case ev.Type == "click" && !ev.Inside:
	case ev.Type == "keydown" && ev.Key == "Escape":
	default:
		return
	}
	w.closePickerLocked()
	w.renderLocked()
}

// SelectPickerYear changes the picker's draft year. The draft month is
// clamped into the months available in that year.
func (w *Widget) SelectPickerYear(year int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.st.PickerOpen {
		return
	}
	r := w.st.Bounds()
	c := bounds.Clamp(year, w.st.PickerDraft.Month, r)
	start, end := bounds.MonthsInYear(c.Year, r)
	w.st.PickerDraft = bounds.Month{Year: c.Year, Month: min(max(c.Month, start), end)}
	w.renderLocked()
}

// SelectPickerMonth changes the picker's draft month within the draft year.
func (w *Widget) SelectPickerMonth(month int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.st.PickerOpen {
		return
	}
	start, end := bounds.MonthsInYear(w.st.PickerDraft.Year, w.st.Bounds())
	w.st.PickerDraft.Month = min(max(month, start), end)
	w.renderLocked()
}

// ApplyPicker jumps to the picker's draft month.
func (w *Widget) ApplyPicker(ctx context.Context) {
	w.mu.Lock()
	draft := w.st.PickerDraft
	open := w.st.PickerOpen
	w.mu.Unlock()
	if !open {
		return
	}
	w.ApplyMonthSelection(ctx, draft.Year, draft.Month)
}

// ApplyMonthSelection closes the picker and jumps to (year, month) clamped
// into the month range. An invalid month only closes the picker.
func (w *Widget) ApplyMonthSelection(ctx context.Context, year, month int) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	valid := month >= 1 && month <= 12
	target := bounds.Clamp(year, month, w.st.Bounds())
	wasOpen := w.st.PickerOpen
	w.closePickerLocked()
	if wasOpen {
		w.renderLocked()
	}
	w.mu.Unlock()

	if valid {
		w.JumpToMonth(ctx, target.Year, target.Month)
	}
}
