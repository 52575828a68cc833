package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "schedview/internal/log"
)

// Custom property that forces (TRUE) or suppresses (FALSE) highlighting.
const propHighlight = "X-SCHEDULE-HIGHLIGHT"

// vevent is one parsed VEVENT. Recurrence expansion works on this type.
type vevent struct {
	UID     string
	Summary string
	Desc    string
	URL     string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time

	ForceHighlight bool
	ForceHide      bool
	Pinned         bool
}

// feedData is the parsed content of one feed.
type feedData struct {
	Name   string // X-WR-CALNAME
	Events []vevent
}

// parseFeed parses an ICS payload. Floating times are read in loc.
// Invalid VEVENTs are logged and skipped.
func parseFeed(feed Feed, body []byte, loc *time.Location) (*feedData, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := &feedData{}
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, "X-WR-CALNAME") {
			out.Name = strings.TrimSpace(p.Value)
		}
	}

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "feed", feed.ID, "reason", perr.Error())
			continue
		}
		out.Events = append(out.Events, ev)
	}
	appLog.Debug("ics parse completed", "feed", feed.ID, "events", len(out.Events))
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Desc = propValue(ve, ical.ComponentPropertyDescription)
	out.URL = propValue(ve, ical.ComponentPropertyUrl)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	start, err := ve.GetStartAt()
	if err != nil {
		start, err = parseICSTime(dtStart.Value, loc)
		if err != nil {
			return out, err
		}
	}
	out.Start = start

	end, err := ve.GetEndAt()
	if err != nil || end.IsZero() {
		// No DTEND: one day for all-day events, an instant otherwise.
		end = start
		if out.AllDay {
			end = start.AddDate(0, 0, 1)
		}
	}
	if end.Before(start) {
		end = start
	}
	out.End = end

	out.RRule = propValue(ve, ical.ComponentPropertyRrule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, err := parseICSTime(rid.Value, start.Location()); err == nil {
			out.RecurrenceID = &t
		}
	}

	switch strings.ToUpper(propValue(ve, propHighlight)) {
	case "TRUE":
		out.ForceHighlight = true
	case "FALSE":
		out.ForceHide = true
	}
	// PRIORITY 1-4 is "high" in RFC 5545.
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertyPriority)); err == nil && n >= 1 && n <= 4 {
		out.Pinned = true
	}
	return out, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
