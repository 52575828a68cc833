package widget

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"schedview/internal/bounds"
	"schedview/internal/datekey"
	appLog "schedview/internal/log"
	"schedview/internal/model"
	"schedview/internal/source"
)

// load runs the main pipeline for the current calendar and navigation date.
func (w *Widget) load(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	calendar := w.st.Attrs.Calendar
	if calendar == "" {
		w.clearLocked()
		w.renderLocked()
		w.mu.Unlock()
		return
	}
	tok, lctx := w.main.begin(ctx)
	w.st.Loading = true
	reloadMeta := !w.st.meta.freshFor(calendar)
	w.renderLocked()
	w.mu.Unlock()

	err := w.runMainLoad(lctx, tok, calendar, reloadMeta)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.main.current(tok) {
		return
	}
	w.main.finish(tok)
	w.st.Loading = false
	if err != nil && !errors.Is(err, errSuperseded) {
		w.failMainLocked(calendar, err)
	}
	w.renderLocked()
}

func (w *Widget) runMainLoad(ctx context.Context, tok uint64, calendar string, reloadMeta bool) error {
	if reloadMeta {
		if err := w.loadMeta(ctx, tok, calendar); err != nil {
			return err
		}
	}

	w.mu.Lock()
	if !w.main.current(tok) {
		w.mu.Unlock()
		return errSuperseded
	}
	start := datekey.WeekStart(w.st.Current)
	w.mu.Unlock()
	end := datekey.EndOfDay(start.AddDate(0, 0, GridDays-1))

	events, err := w.store.ListEvents(ctx, source.EventQuery{
		Calendar: calendar,
		From:     start,
		To:       end,
		Size:     w.sizes.Window,
	})
	if !w.stillCurrent(&w.main, tok) {
		return errSuperseded
	}
	if err != nil {
		return fmt.Errorf("load window: %w", err)
	}
	w.cache.Hydrate(ctx, events)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.main.current(tok) {
		return errSuperseded
	}
	w.st.Events = events
	return nil
}

// loadMeta fetches calendar metadata and the upcoming list, then resets the
// panel to the upcoming view.
func (w *Widget) loadMeta(ctx context.Context, tok uint64, calendar string) error {
	calendars, err := w.store.ListCalendars(ctx, 1, w.sizes.CalendarPage)
	if !w.stillCurrent(&w.main, tok) {
		return errSuperseded
	}
	if err != nil {
		return fmt.Errorf("load calendars: %w", err)
	}
	matched := source.FindCalendar(calendars, calendar)

	w.mu.Lock()
	if !w.main.current(tok) {
		w.mu.Unlock()
		return errSuperseded
	}
	w.st.Title = calendarTitle(matched, calendar)
	rng := bounds.Resolve(matched, bounds.MonthOf(w.st.Current))
	w.st.MonthMin, w.st.MonthMax = rng.Keys()
	w.clampCurrentLocked(rng)
	window := bounds.UpcomingWindow(matched, datekey.StartOfDay(w.now()))
	w.mu.Unlock()

	upcoming, err := w.store.ListEvents(ctx, source.EventQuery{
		Calendar: calendar,
		From:     window.Start,
		To:       window.End,
		Size:     w.sizes.Upcoming,
	})
	if !w.stillCurrent(&w.main, tok) {
		return errSuperseded
	}
	if err != nil {
		return fmt.Errorf("load upcoming: %w", err)
	}
	w.cache.Hydrate(ctx, upcoming)
	SortByStart(upcoming)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.main.current(tok) {
		return errSuperseded
	}
	w.st.Upcoming = upcoming
	w.st.UpcomingRange = window.Label()
	w.st.meta = freshFor(calendar)
	w.showUpcomingLocked()
	return nil
}

// failMainLocked applies the fallbacks of a failed main load.
func (w *Widget) failMainLocked(calendar string, err error) {
	appLog.Error("widget load failed", err, "calendar", calendar)

	w.st.Events = nil
	w.st.Title = calendar
	if !w.st.meta.freshFor(calendar) {
		w.st.Upcoming = nil
		w.st.UpcomingRange = ""
		if w.st.SelectedDay == "" {
			w.st.Panel = nil
		}
	}
	w.st.MonthMin, w.st.MonthMax = bounds.Single(bounds.MonthOf(w.st.Current)).Keys()
}

// clearLocked drops all data for a widget that has no calendar.
func (w *Widget) clearLocked() {
	w.main.invalidate()
	w.panel.invalidate()
	w.closePickerLocked()

	w.st.Events = nil
	w.st.Upcoming = nil
	w.st.Panel = nil
	w.st.Loading = false
	w.st.PanelLoading = false
	w.st.SelectedDay = ""
	w.st.Title = DefaultTitle
	w.st.UpcomingRange = ""
	w.st.meta = metaFreshness{}
	w.st.MonthMin, w.st.MonthMax = bounds.Single(bounds.MonthOf(w.st.Current)).Keys()
}

// showUpcomingLocked clears the day selection and shows the upcoming list.
// Any in-flight day fetch is superseded.
func (w *Widget) showUpcomingLocked() {
	w.panel.invalidate()
	w.st.SelectedDay = ""
	w.st.PanelLoading = false
	w.st.Panel = model.CloneEvents(w.st.Upcoming)
}

// clampCurrentLocked moves the navigation date to the first of its month,
// snapped into r.
func (w *Widget) clampCurrentLocked(r bounds.Range) {
	cur := bounds.MonthOf(w.st.Current)
	w.st.Current = w.firstOf(bounds.Clamp(cur.Year, cur.Month, r))
}

func (w *Widget) firstOf(m bounds.Month) time.Time {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, w.loc)
}

// loadPanel selects day and fetches its events on the panel pipeline.
func (w *Widget) loadPanel(ctx context.Context, day string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	calendar := w.st.Attrs.Calendar
	from, ok := datekey.ParseLocal(day, w.loc)
	if calendar == "" || !ok {
		w.mu.Unlock()
		return
	}
	tok, pctx := w.panel.begin(ctx)
	w.st.SelectedDay = day
	w.st.PanelLoading = true
	w.renderLocked()
	w.mu.Unlock()

	events, err := w.store.ListEvents(pctx, source.EventQuery{
		Calendar: calendar,
		From:     from,
		To:       datekey.EndOfDay(from),
		Size:     w.sizes.Panel,
	})
	if err == nil && w.stillCurrent(&w.panel, tok) {
		w.cache.Hydrate(pctx, events)
		SortByStart(events)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.panel.current(tok) {
		return
	}
	w.panel.finish(tok)
	if err != nil {
		appLog.Error("widget day load failed", err, "calendar", calendar, "day", day)
		events = nil
	}
	w.st.Panel = events
	w.st.PanelLoading = false
	w.renderLocked()
}

// SortByStart orders events by start text; ties keep their input order.
func SortByStart(events []model.Event) {
	slices.SortStableFunc(events, func(a, b model.Event) int {
		return strings.Compare(a.StartAt, b.StartAt)
	})
}

func calendarTitle(cal *model.Calendar, id string) string {
	if cal != nil {
		if name := strings.TrimSpace(cal.DisplayName); name != "" {
			return name
		}
	}
	return id
}
