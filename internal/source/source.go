// Package source defines the fetch boundary between the widget and the
// event store it reads from.
package source

import (
	"context"
	"errors"
	"time"

	"schedview/internal/model"
)

// ErrNotFound reports that the requested calendar or post does not exist.
var ErrNotFound = errors.New("not found")

// EventQuery selects the events of one calendar that touch [From, To].
type EventQuery struct {
	Calendar string
	From     time.Time
	To       time.Time
	Size     int
	Page     int // 1-based; zero means the first page
}

// Catalog is the read side of an event store.
type Catalog interface {
	ListEvents(ctx context.Context, q EventQuery) ([]model.Event, error)
	ListCalendars(ctx context.Context, page, size int) ([]model.Calendar, error)
}

// PostResolver looks up the public permalink of a related post.
// It returns ErrNotFound when the post does not exist.
type PostResolver interface {
	LookupPermalink(ctx context.Context, postID string) (string, error)
}

// Store is a Catalog that can also resolve post permalinks.
type Store interface {
	Catalog
	PostResolver
}

// FindCalendar returns the calendar with the given identifier, or nil.
func FindCalendar(calendars []model.Calendar, id string) *model.Calendar {
	for i := range calendars {
		if calendars[i].ID == id {
			c := calendars[i]
			return &c
		}
	}
	return nil
}
