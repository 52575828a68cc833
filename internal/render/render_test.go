package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/model"
	"schedview/internal/widget"
)

func sampleView() widget.View {
	st := widget.State{
		Attrs:       widget.Attributes{Calendar: "team", ShowTitle: true, RenderStyle: widget.RenderStyleDefault},
		Current:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Title:       "Team <ops>",
		Events:      []model.Event{{StartAt: "2024-03-05", Highlighted: true}},
		SelectedDay: "2024-03-05",
		Panel: []model.Event{
			{Title: "linked", StartAt: "2024-03-05T09:00:00Z", RelatedPostPermalink: "/archives/a"},
			{Title: "plain", StartAt: "2024-03-05T10:00:00Z"},
		},
		MonthMin: "2024-01",
		MonthMax: "2024-06",
	}
	return widget.Derive(st, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
}

func TestFragment(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	html, err := r.FragmentString(sampleView())
	require.NoError(t, err)

	assert.Contains(t, html, `data-ready="true"`)
	assert.Contains(t, html, "Team &lt;ops&gt;", "title is escaped")
	assert.Contains(t, html, `<span>MON</span>`)
	assert.Equal(t, widget.GridDays, strings.Count(html, `data-action="select-day"`))
	assert.Contains(t, html, `class="cell has-event has-highlight-event selected" data-action="select-day" data-day="2024-03-05"`)
	assert.Contains(t, html, `class="cell today" data-action="select-day" data-day="2024-03-15"`)
	assert.Contains(t, html, "当前筛选：2024-03-05")
	assert.Contains(t, html, `href="/archives/a"`)
	assert.Contains(t, html, `<div class="name">plain</div>`)
	assert.Contains(t, html, `month-panel hidden`)
	assert.Contains(t, html, `<option value="3" selected>03月</option>`)
	assert.NotContains(t, html, "暂无日程")
}

func TestFragment_HidesTitleAndShowsPlaceholders(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	v := sampleView()
	v.ShowTitle = false
	v.Items = nil
	v.Loading = true
	v.Ready = false

	html, err := r.FragmentString(v)
	require.NoError(t, err)
	assert.NotContains(t, html, `class="title"`)
	assert.Contains(t, html, "加载中...")
	assert.Contains(t, html, `data-ready="false"`)
}

func TestPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, Page{ID: "abc", View: sampleView(), Live: true}))
	html := buf.String()
	assert.Contains(t, html, `data-id="abc"`)
	assert.Contains(t, html, `/static/widget.js`)

	buf.Reset()
	require.NoError(t, r.Page(&buf, Page{ID: "abc", View: sampleView()}))
	assert.NotContains(t, buf.String(), `/static/widget.js`)
}
