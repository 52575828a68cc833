package widget

import (
	"context"
	"strings"
	"time"

	"schedview/internal/bounds"
	"schedview/internal/datekey"
)

// Handlers block until the loads they start have committed or been
// superseded. They are safe to call concurrently.

// ShiftWeek moves the navigation date by step weeks and reloads.
func (w *Widget) ShiftWeek(ctx context.Context, step int) {
	w.mu.Lock()
	w.st.Current = w.st.Current.AddDate(0, 0, 7*step)
	w.mu.Unlock()
	w.load(ctx)
}

// ShiftMonth moves to the first of the month step months away and reloads.
func (w *Widget) ShiftMonth(ctx context.Context, step int) {
	w.mu.Lock()
	cur := w.st.Current
	w.st.Current = time.Date(cur.Year(), cur.Month()+time.Month(step), 1, 0, 0, 0, 0, w.loc)
	w.mu.Unlock()
	w.load(ctx)
}

// Wheel shifts by one week in the direction of deltaY. Zero is ignored.
func (w *Widget) Wheel(ctx context.Context, deltaY float64) {
	switch {
	case deltaY > 0:
		w.ShiftWeek(ctx, 1)
	case deltaY < 0:
		w.ShiftWeek(ctx, -1)
	}
}

// JumpToMonth navigates to the first of year-month and reloads. It
// reports false without side effects when month is outside 1..12.
func (w *Widget) JumpToMonth(ctx context.Context, year, month int) bool {
	if month < 1 || month > 12 {
		return false
	}
	w.mu.Lock()
	w.st.Current = w.firstOf(bounds.Month{Year: year, Month: month})
	w.mu.Unlock()
	w.load(ctx)
	return true
}

// JumpToMonthKey is JumpToMonth for a "YYYY-MM" key.
func (w *Widget) JumpToMonthKey(ctx context.Context, key string) bool {
	year, month, ok := datekey.ParseMonthKey(strings.TrimSpace(key))
	if !ok {
		return false
	}
	return w.JumpToMonth(ctx, year, month)
}

// JumpToDate navigates to the day, waits for the main load and then loads
// that day's panel. Invalid keys are ignored.
func (w *Widget) JumpToDate(ctx context.Context, day string) bool {
	day = strings.TrimSpace(day)
	t, ok := datekey.ParseLocal(day, w.loc)
	if !ok {
		return false
	}
	w.mu.Lock()
	w.st.Current = t
	w.mu.Unlock()
	w.load(ctx)
	w.loadPanel(ctx, day)
	return true
}

// Today jumps to the current day in the display location.
func (w *Widget) Today(ctx context.Context) {
	w.JumpToDate(ctx, datekey.DayKey(w.now()))
}

// SelectDay shows the events of day in the list panel.
func (w *Widget) SelectDay(ctx context.Context, day string) {
	w.loadPanel(ctx, strings.TrimSpace(day))
}

// ResetToUpcoming clears the day selection and shows the upcoming list. An
// in-flight day fetch is superseded and will not commit.
func (w *Widget) ResetToUpcoming() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.showUpcomingLocked()
	w.renderLocked()
}

// Reload reruns the main load. Metadata is refetched only when stale.
func (w *Widget) Reload(ctx context.Context) {
	w.load(ctx)
}

// Refresh marks metadata stale and reruns the main load.
func (w *Widget) Refresh(ctx context.Context) {
	w.mu.Lock()
	w.st.meta = metaFreshness{}
	w.mu.Unlock()
	w.load(ctx)
}

// SetCalendar changes the calendar identifier. Setting the same value is a
// no-op; any other change drops the day selection and reloads.
func (w *Widget) SetCalendar(ctx context.Context, calendar string) {
	calendar = strings.TrimSpace(calendar)
	w.mu.Lock()
	if w.closed || calendar == w.st.Attrs.Calendar {
		w.mu.Unlock()
		return
	}
	w.st.Attrs.Calendar = calendar
	w.panel.invalidate()
	w.st.SelectedDay = ""
	w.st.PanelLoading = false
	w.st.Panel = nil
	attached := w.attached
	w.mu.Unlock()

	if attached {
		w.load(ctx)
	}
}

// SetShowTitle applies the show-title attribute; nil means absent.
func (w *Widget) SetShowTitle(raw *string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.Attrs.ShowTitle = ParseShowTitle(raw)
	w.renderLocked()
}

// SetRenderStyle applies the render-style attribute.
func (w *Widget) SetRenderStyle(raw string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.Attrs.RenderStyle = ParseRenderStyle(raw)
	w.renderLocked()
}
