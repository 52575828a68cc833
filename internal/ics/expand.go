package ics

import (
	"errors"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"schedview/internal/datekey"
	appLog "schedview/internal/log"
	"schedview/internal/model"
)

// maxOccurrences caps the expansion of a single recurring VEVENT.
const maxOccurrences = 5000

// occurrence is one concrete instance of a VEVENT.
type occurrence struct {
	ev    vevent
	start time.Time
	end   time.Time
}

// expand turns VEVENTs into occurrences that may intersect [from, to].
// RECURRENCE-ID overrides replace the matching generated instance.
func expand(events []vevent, from, to time.Time) []occurrence {
	bases := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	var order []string
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, ok := bases[ev.UID]; !ok {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	var out []occurrence
	for _, uid := range order {
		for _, ev := range bases[uid] {
			if ev.RRule == "" {
				if overlaps(ev.Start, ev.End, from, to) {
					out = append(out, applyOverride(occurrence{ev: ev, start: ev.Start, end: ev.End}, overrides[uid]))
				}
				continue
			}
			out = append(out, expandRecurring(ev, overrides[uid], from, to)...)
		}
	}
	return out
}

func buildSet(ev vevent) (*rrule.Set, *rrule.RRule, error) {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, nil, err
	}
	r.DTStart(ev.Start)

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}
	return set, r, nil
}

func expandRecurring(ev vevent, overrides []vevent, from, to time.Time) []occurrence {
	set, _, err := buildSet(ev)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil
	}

	// Widen the lower bound by the duration so instances that started
	// before the window but are still running are included.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	starts := set.Between(from.Add(-dur).In(loc), to.In(loc), true)
	if len(starts) > maxOccurrences {
		appLog.Error("ics expansion truncated", errors.New("max occurrences reached"), "uid", ev.UID, "cap", maxOccurrences)
		starts = starts[:maxOccurrences]
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		occ := occurrence{ev: ev, start: s, end: s.Add(dur)}
		out = append(out, applyOverride(occ, overrides))
	}
	return out
}

func applyOverride(occ occurrence, overrides []vevent) occurrence {
	for _, ov := range overrides {
		if ov.RecurrenceID.Equal(occ.start) {
			return occurrence{ev: ov, start: ov.Start, end: ov.End}
		}
	}
	return occ
}

// lastEnd returns the end of the final instance of ev. Unbounded rules
// report only their first instance.
func lastEnd(ev vevent) time.Time {
	if ev.RRule == "" {
		return ev.End
	}
	_, r, err := buildSet(ev)
	if err != nil {
		return ev.End
	}
	dur := ev.End.Sub(ev.Start)
	opts := r.OrigOptions
	switch {
	case !opts.Until.IsZero():
		if last := r.Before(opts.Until, true); !last.IsZero() {
			return last.Add(dur)
		}
	case opts.Count > 0 && opts.Count <= maxOccurrences:
		if all := r.All(); len(all) > 0 {
			return all[len(all)-1].Add(dur)
		}
	}
	return ev.End
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// toEvent renders an occurrence the way the event store reports events.
// All-day instances are anchored on UTC days: start at 00:00:00.000Z of the
// first day, end at 23:59:59.999Z of the last covered day.
func (o occurrence) toEvent() model.Event {
	ev := model.Event{
		Title:                o.ev.Summary,
		Summary:              o.ev.Desc,
		RelatedPostPermalink: model.NormalizePermalink(o.ev.URL),
		Highlighted:          model.Highlight(o.ev.ForceHighlight, o.ev.ForceHide, o.ev.Pinned),
	}
	if o.ev.AllDay {
		first := time.Date(o.start.Year(), o.start.Month(), o.start.Day(), 0, 0, 0, 0, time.UTC)
		last := time.Date(o.end.Year(), o.end.Month(), o.end.Day(), 0, 0, 0, 0, time.UTC)
		if last.After(first) {
			// DTEND of an all-day event is exclusive.
			last = last.AddDate(0, 0, -1)
		}
		ev.StartAt = datekey.ISO(first)
		ev.EndAt = datekey.ISO(datekey.EndOfDay(last))
		return ev
	}
	ev.StartAt = datekey.ISO(o.start)
	if o.end.After(o.start) {
		ev.EndAt = datekey.ISO(o.end)
	}
	return ev
}

// matchesWindow compares on ISO text: effectiveEnd >= from && start <= to,
// where effectiveEnd is the end or, when missing, the start.
func matchesWindow(ev model.Event, from, to string) bool {
	end := ev.EndAt
	if end == "" {
		end = ev.StartAt
	}
	return strings.Compare(end, from) >= 0 && strings.Compare(ev.StartAt, to) <= 0
}
