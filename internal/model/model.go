package model

import "strings"

// Event is one schedule entry as the widget displays it. Values are copied
// into each list that holds them; lists never share an Event.
type Event struct {
	Title   string
	StartAt string // ISO-8601 text as delivered by the store
	EndAt   string // optional; empty means "same as StartAt"

	RelatedPostID        string
	RelatedPostTitle     string
	RelatedPostPermalink string

	Summary string

	// Highlighted is derived once at ingestion, see Highlight.
	Highlighted bool
}

// Calendar is the read-only metadata snapshot of a schedule calendar.
type Calendar struct {
	ID          string
	DisplayName string
	Visible     bool

	// MinMonth / MaxMonth bound month navigation (YYYY-MM); either may be empty.
	MinMonth string
	MaxMonth string

	// RangeEndDate (YYYY-MM-DD) caps the upcoming window when set.
	RangeEndDate string
}

// Highlight resolves whether an event is rendered emphasized.
// forceHighlight wins over forceHideHighlight, which wins over the pinned
// snapshot of the related post.
func Highlight(forceHighlight, forceHideHighlight, pinned bool) bool {
	if forceHighlight {
		return true
	}
	if forceHideHighlight {
		return false
	}
	return pinned
}

// NormalizePermalink turns a post permalink into an absolute path unless it
// is already an absolute or protocol-relative URL.
func NormalizePermalink(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "//") {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return raw
	}
	return "/" + raw
}

// CloneEvents returns an independent copy of events.
func CloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out
}
