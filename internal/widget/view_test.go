package widget_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/model"
	"schedview/internal/widget"
)

func TestDerive_Grid(t *testing.T) {
	st := widget.State{
		Current: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Events: []model.Event{
			{Title: "trip", StartAt: "2024-03-04T10:00:00Z", EndAt: "2024-03-06T10:00:00Z", Highlighted: true},
			{Title: "call", StartAt: "2024-03-05"},
		},
		SelectedDay: "2024-03-05",
		MonthMin:    "2024-01",
		MonthMax:    "2024-06",
	}
	v := widget.Derive(st, march15)

	require.Len(t, v.Cells, widget.GridDays)
	assert.Equal(t, "2024-02-26", v.Cells[0].Key)
	assert.Equal(t, "2024-04-07", v.Cells[41].Key)
	assert.Equal(t, "2024-03", v.MonthText)

	mar4 := v.Cells[7]
	assert.Equal(t, "2024-03-04", mar4.Key)
	assert.Equal(t, 4, mar4.Day)
	assert.True(t, mar4.HasEvent)
	assert.True(t, mar4.HasHighlight)

	mar5 := v.Cells[8]
	assert.True(t, mar5.Selected)
	assert.True(t, mar5.HasEvent)

	mar7 := v.Cells[10]
	assert.False(t, mar7.HasEvent)
	assert.False(t, mar7.HasHighlight)

	assert.True(t, v.Cells[18].Today)
	assert.Equal(t, "2024-03-15", v.TodayKey)
}

func TestDerive_List(t *testing.T) {
	st := widget.State{
		Current:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Upcoming:      []model.Event{{Title: "u", StartAt: "2024-03-16"}},
		Panel:         []model.Event{{StartAt: "2024-03-05T08:00:00Z", RelatedPostPermalink: "x"}},
		UpcomingRange: "2024-03-15 至 2025-03-15",
	}

	v := widget.Derive(st, march15)
	assert.Equal(t, "固定范围：2024-03-15 至 2025-03-15", v.Subheading)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "u", v.Items[0].Title)
	assert.False(t, v.Empty)
	assert.True(t, v.Ready)

	st.SelectedDay = "2024-03-05"
	v = widget.Derive(st, march15)
	assert.Equal(t, "当前筛选：2024-03-05", v.Subheading)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "2024-03-05", v.Items[0].Date)
	assert.Equal(t, "-", v.Items[0].Title)
	assert.Equal(t, "/x", v.Items[0].Href)

	st.Panel = nil
	st.PanelLoading = true
	v = widget.Derive(st, march15)
	assert.True(t, v.Loading)
	assert.False(t, v.Empty)
	assert.False(t, v.Ready)

	st.PanelLoading = false
	v = widget.Derive(st, march15)
	assert.True(t, v.Empty)
	assert.Equal(t, widget.DefaultTitle, v.Title)
}

func TestDerive_PickerClampsToRange(t *testing.T) {
	st := widget.State{
		Current:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		MonthMin: "2023-11",
		MonthMax: "2024-02",
	}
	p := widget.Derive(st, march15).Picker

	assert.False(t, p.Open)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, 2, p.Month)
	require.Len(t, p.Years, 2)
	assert.Equal(t, "2023年", p.Years[0].Label)
	assert.True(t, p.Years[1].Selected)
	require.Len(t, p.Months, 2)
	assert.Equal(t, "02月", p.Months[1].Label)
	assert.True(t, p.Months[1].Selected)
}

func TestGroupByDay(t *testing.T) {
	byDay := widget.GroupByDay([]model.Event{
		{Title: "span", StartAt: "2024-03-30T00:00:00Z", EndAt: "2024-04-01T00:00:00Z"},
		{Title: "bad"},
	})
	assert.Len(t, byDay, 3)
	assert.Len(t, byDay["2024-03-31"], 1)
}

func TestSortByStart_IsStable(t *testing.T) {
	events := []model.Event{
		{Title: "b1", StartAt: "2024-03-02"},
		{Title: "a", StartAt: "2024-03-01"},
		{Title: "b2", StartAt: "2024-03-02"},
	}
	widget.SortByStart(events)
	assert.Equal(t, []string{"a", "b1", "b2"}, []string{events[0].Title, events[1].Title, events[2].Title})
}
