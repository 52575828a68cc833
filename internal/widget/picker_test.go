package widget_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/bounds"
	"schedview/internal/widget"
)

func TestPicker_DocumentEventsClose(t *testing.T) {
	w, _, bus := newWidget(teamStore(), "team")
	w.Attach(context.Background())

	w.OpenPicker()
	w.OpenPicker()
	require.Equal(t, 1, bus.Len(), "opening twice subscribes once")
	assert.Equal(t, bounds.Month{Year: 2024, Month: 3}, w.Snapshot().PickerDraft)

	bus.Dispatch(widget.DocumentEvent{Type: "click", Inside: true})
	bus.Dispatch(widget.DocumentEvent{Type: "keydown", Key: "a"})
	assert.True(t, w.Snapshot().PickerOpen)

	bus.Dispatch(widget.DocumentEvent{Type: "keydown", Key: "Escape"})
	assert.False(t, w.Snapshot().PickerOpen)
	assert.Zero(t, bus.Len())

	w.TogglePicker()
	require.Equal(t, 1, bus.Len())
	bus.Dispatch(widget.DocumentEvent{Type: "click"})
	assert.False(t, w.Snapshot().PickerOpen)
	assert.Zero(t, bus.Len())

	w.TogglePicker()
	w.TogglePicker()
	assert.Zero(t, bus.Len())
}

func TestPicker_DraftIsClampedToRange(t *testing.T) {
	w, rec, bus := newWidget(teamStore(), "team")
	w.Attach(context.Background())
	w.OpenPicker()

	w.SelectPickerYear(2025)
	assert.Equal(t, bounds.Month{Year: 2024, Month: 6}, w.Snapshot().PickerDraft)

	p := rec.last().Picker
	assert.True(t, p.Open)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, 6, p.Month)
	require.Len(t, p.Months, 6)
	assert.True(t, p.Months[5].Selected)

	w.SelectPickerMonth(1)
	w.ApplyPicker(context.Background())

	st := w.Snapshot()
	assert.False(t, st.PickerOpen)
	assert.Zero(t, bus.Len())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), st.Current)
}

func TestApplyMonthSelection(t *testing.T) {
	w, _, bus := newWidget(teamStore(), "team")
	w.Attach(context.Background())

	w.OpenPicker()
	w.ApplyMonthSelection(context.Background(), 2023, 1)
	st := w.Snapshot()
	assert.False(t, st.PickerOpen)
	assert.Zero(t, bus.Len())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), st.Current)

	w.OpenPicker()
	w.ApplyMonthSelection(context.Background(), 2024, 13)
	st = w.Snapshot()
	assert.False(t, st.PickerOpen)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), st.Current, "invalid month only closes")
}

func TestPicker_ReleasedWhenCalendarRemoved(t *testing.T) {
	w, _, bus := newWidget(teamStore(), "team")
	w.Attach(context.Background())
	w.OpenPicker()
	require.Equal(t, 1, bus.Len())

	w.SetCalendar(context.Background(), "")
	assert.False(t, w.Snapshot().PickerOpen)
	assert.Zero(t, bus.Len())
}

func TestBus_ReleaseIsIdempotent(t *testing.T) {
	bus := widget.NewBus()
	var mu sync.Mutex
	got := 0
	release := bus.Subscribe(func(widget.DocumentEvent) {
		mu.Lock()
		got++
		mu.Unlock()
	})
	other := bus.Subscribe(func(widget.DocumentEvent) {})

	assert.Equal(t, 2, bus.Dispatch(widget.DocumentEvent{Type: "click"}))
	release()
	release()
	assert.Equal(t, 1, bus.Len())
	assert.Equal(t, 1, bus.Dispatch(widget.DocumentEvent{Type: "click"}))
	assert.Equal(t, 1, got)
	other()
	assert.Zero(t, bus.Len())
}
