package widget

import (
	"strings"
	"time"

	"schedview/internal/bounds"
	"schedview/internal/model"
)

const (
	// DefaultTitle is shown when no calendar is configured.
	DefaultTitle = "日程"

	// RenderStyleDefault is the only recognized render style.
	RenderStyleDefault = "default"

	// GridDays is the number of cells in the month grid (six weeks).
	GridDays = 42
)

// Sizes are the page sizes requested from the event store.
type Sizes struct {
	Upcoming     int
	Window       int
	Panel        int
	CalendarPage int
}

// DefaultSizes returns the page sizes the widget uses unless configured.
func DefaultSizes() Sizes {
	return Sizes{Upcoming: 1200, Window: 600, Panel: 200, CalendarPage: 300}
}

func (s Sizes) withDefaults() Sizes {
	d := DefaultSizes()
	if s.Upcoming <= 0 {
		s.Upcoming = d.Upcoming
	}
	if s.Window <= 0 {
		s.Window = d.Window
	}
	if s.Panel <= 0 {
		s.Panel = d.Panel
	}
	if s.CalendarPage <= 0 {
		s.CalendarPage = d.CalendarPage
	}
	return s
}

// Attributes is the external configuration surface of a widget.
type Attributes struct {
	Calendar    string
	ShowTitle   bool
	RenderStyle string
}

// ParseShowTitle interprets the show-title attribute. An absent attribute
// means true; false, 0, off and no (any case, trimmed) mean false.
func ParseShowTitle(raw *string) bool {
	if raw == nil {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "false", "0", "off", "no":
		return false
	default:
		return true
	}
}

// ParseRenderStyle interprets the render-style attribute.
func ParseRenderStyle(string) string {
	return RenderStyleDefault
}

// metaFreshness records which calendar the loaded metadata belongs to.
// The zero value is stale for every calendar.
type metaFreshness struct {
	calendar string
	fresh    bool
}

func freshFor(calendar string) metaFreshness {
	return metaFreshness{calendar: calendar, fresh: true}
}

func (m metaFreshness) freshFor(calendar string) bool {
	return m.fresh && m.calendar == calendar
}

// State is the single source of truth a View is derived from.
type State struct {
	Attrs Attributes

	// Current is the navigation date, in the display location.
	Current time.Time

	Events   []model.Event // grid window
	Upcoming []model.Event
	Panel    []model.Event // active day (or the upcoming list after a reset)

	Loading      bool // main load in flight
	PanelLoading bool
	SelectedDay  string

	Title         string
	UpcomingRange string

	MonthMin string
	MonthMax string

	PickerOpen  bool
	PickerDraft bounds.Month

	meta metaFreshness
}

// Bounds returns the navigable month range stored in s.
func (s State) Bounds() bounds.Range {
	return bounds.FromKeys(s.MonthMin, s.MonthMax, bounds.MonthOf(s.Current))
}

// MetaLoadedFor reports whether calendar metadata is cached for calendar.
func (s State) MetaLoadedFor(calendar string) bool {
	return s.meta.freshFor(calendar)
}

func (s State) clone() State {
	out := s
	out.Events = model.CloneEvents(s.Events)
	out.Upcoming = model.CloneEvents(s.Upcoming)
	out.Panel = model.CloneEvents(s.Panel)
	return out
}
