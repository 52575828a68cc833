package widget

import (
	"fmt"
	"time"

	"schedview/internal/bounds"
	"schedview/internal/datekey"
	"schedview/internal/model"
)

// Weekdays are the grid column headers, Monday first.
var Weekdays = []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

// View is everything needed to draw the widget.
type View struct {
	Title       string `json:"title"`
	ShowTitle   bool   `json:"showTitle"`
	RenderStyle string `json:"renderStyle"`
	MonthText   string `json:"monthText"`
	TodayKey    string `json:"todayKey"`

	Cells  []Cell `json:"cells"`
	Picker Picker `json:"picker"`

	SelectedDay string `json:"selectedDay,omitempty"`
	Subheading  string `json:"subheading"`
	Items       []Item `json:"items"`
	Loading     bool   `json:"loading"`
	Empty       bool   `json:"empty"`

	// Ready is false while any load is in flight.
	Ready bool `json:"ready"`
}

// Cell is one day of the month grid.
type Cell struct {
	Key          string `json:"key"`
	Day          int    `json:"day"`
	HasEvent     bool   `json:"hasEvent"`
	HasHighlight bool   `json:"hasHighlight"`
	Selected     bool   `json:"selected"`
	Today        bool   `json:"today"`
}

// Picker is the month picker's presentation.
type Picker struct {
	Open   bool     `json:"open"`
	Year   int      `json:"year"`
	Month  int      `json:"month"`
	Years  []Option `json:"years"`
	Months []Option `json:"months"`
}

// Option is one selectable picker value.
type Option struct {
	Value    int    `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Item is one row of the list panel.
type Item struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Href        string `json:"href,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Highlighted bool   `json:"highlighted"`
}

// GroupByDay indexes events under every UTC day-key they cover.
func GroupByDay(events []model.Event) map[string][]model.Event {
	out := make(map[string][]model.Event)
	for _, ev := range events {
		for _, key := range datekey.EventKeys(ev.StartAt, ev.EndAt) {
			out[key] = append(out[key], ev)
		}
	}
	return out
}

// Derive computes the View of st at now. now should be in the display
// location.
func Derive(st State, now time.Time) View {
	v := View{
		Title:       st.Title,
		ShowTitle:   st.Attrs.ShowTitle,
		RenderStyle: st.Attrs.RenderStyle,
		MonthText:   datekey.MonthKey(st.Current),
		TodayKey:    datekey.DayKey(now),
		SelectedDay: st.SelectedDay,
		Loading:     st.PanelLoading,
		Ready:       !st.Loading && !st.PanelLoading,
	}
	if v.Title == "" {
		v.Title = DefaultTitle
	}

	byDay := GroupByDay(st.Events)
	start := datekey.WeekStart(st.Current)
	v.Cells = make([]Cell, GridDays)
	for i := range v.Cells {
		day := start.AddDate(0, 0, i)
		key := datekey.DayKey(day)
		evs := byDay[key]
		c := Cell{
			Key:      key,
			Day:      day.Day(),
			HasEvent: len(evs) > 0,
			Selected: key == st.SelectedDay,
			Today:    key == v.TodayKey,
		}
		for _, ev := range evs {
			if ev.Highlighted {
				c.HasHighlight = true
				break
			}
		}
		v.Cells[i] = c
	}

	v.Picker = derivePicker(st)

	list := st.Upcoming
	if st.SelectedDay != "" {
		list = st.Panel
		v.Subheading = "当前筛选：" + st.SelectedDay
	} else {
		label := st.UpcomingRange
		if label == "" {
			label = "-"
		}
		v.Subheading = "固定范围：" + label
	}
	v.Items = make([]Item, 0, len(list))
	for _, ev := range list {
		v.Items = append(v.Items, toItem(ev))
	}
	v.Empty = !st.PanelLoading && len(v.Items) == 0
	return v
}

func derivePicker(st State) Picker {
	r := st.Bounds()
	cur := bounds.MonthOf(st.Current)
	value := bounds.Clamp(cur.Year, cur.Month, r)
	if st.PickerOpen && st.PickerDraft.Month != 0 {
		value = st.PickerDraft
	}

	p := Picker{Open: st.PickerOpen, Year: value.Year, Month: value.Month}
	for _, y := range r.Years() {
		p.Years = append(p.Years, Option{Value: y, Label: fmt.Sprintf("%d年", y), Selected: y == value.Year})
	}
	first, last := bounds.MonthsInYear(value.Year, r)
	for m := first; m <= last; m++ {
		p.Months = append(p.Months, Option{Value: m, Label: fmt.Sprintf("%02d月", m), Selected: m == value.Month})
	}
	return p
}

func toItem(ev model.Event) Item {
	it := Item{
		Date:        ev.StartAt,
		Title:       ev.Title,
		Href:        model.NormalizePermalink(ev.RelatedPostPermalink),
		Summary:     ev.Summary,
		Highlighted: ev.Highlighted,
	}
	if len(it.Date) > 10 {
		it.Date = it.Date[:10]
	}
	if it.Title == "" {
		it.Title = "-"
	}
	return it
}
