// Package remote talks to the schedule event store over its public HTTP API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"schedview/internal/datekey"
	appLog "schedview/internal/log"
	"schedview/internal/model"
	"schedview/internal/source"
)

const (
	eventsPath    = "/apis/api.schedule.bi1kbu.com/v1alpha1/scheduleevents"
	calendarsPath = "/apis/api.schedule.bi1kbu.com/v1alpha1/schedulecalendars"
	postsPath     = "/apis/content.halo.run/v1alpha1/posts/"

	defaultTimeout = 15 * time.Second

	// maxBodyBytes bounds a single response body.
	maxBodyBytes = 16 << 20
)

// UserAgent identifies the client to the event store.
var UserAgent = "schedview/0.1"

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op     string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.Op, e.Status)
}

// Client implements source.Store against the HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ source.Store = (*Client)(nil)

// NewClient creates a client for baseURL. A zero timeout uses 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// wire shapes

type listResult[T any] struct {
	Items []T `json:"items"`
}

type eventItem struct {
	Metadata struct {
		Name              string `json:"name"`
		DeletionTimestamp string `json:"deletionTimestamp,omitempty"`
	} `json:"metadata"`
	Spec struct {
		Title                        string `json:"title"`
		StartAt                      string `json:"startAt"`
		EndAt                        string `json:"endAt"`
		Summary                      string `json:"summary"`
		RelatedPostName              string `json:"relatedPostName"`
		RelatedPostTitleSnapshot     string `json:"relatedPostTitleSnapshot"`
		RelatedPostPermalinkSnapshot string `json:"relatedPostPermalinkSnapshot"`
		RelatedPostPinnedSnapshot    *bool  `json:"relatedPostPinnedSnapshot"`
		ForceHighlight               *bool  `json:"forceHighlight"`
		ForceHideHighlight           *bool  `json:"forceHideHighlight"`
	} `json:"spec"`
}

type calendarItem struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Spec struct {
		DisplayName string `json:"displayName"`
		Visible     *bool  `json:"visible"`
	} `json:"spec"`
	Status *struct {
		RangeStartMonth string `json:"rangeStartMonth"`
		RangeEndMonth   string `json:"rangeEndMonth"`
		RangeEndDate    string `json:"rangeEndDate"`
	} `json:"status"`
}

type postItem struct {
	Status *struct {
		Permalink string `json:"permalink"`
	} `json:"status"`
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// toEvent maps one wire item into a widget event.
func (it eventItem) toEvent() model.Event {
	s := it.Spec
	return model.Event{
		Title:                s.Title,
		StartAt:              s.StartAt,
		EndAt:                s.EndAt,
		Summary:              s.Summary,
		RelatedPostID:        s.RelatedPostName,
		RelatedPostTitle:     s.RelatedPostTitleSnapshot,
		RelatedPostPermalink: model.NormalizePermalink(s.RelatedPostPermalinkSnapshot),
		Highlighted:          model.Highlight(isTrue(s.ForceHighlight), isTrue(s.ForceHideHighlight), isTrue(s.RelatedPostPinnedSnapshot)),
	}
}

func (it calendarItem) toCalendar() model.Calendar {
	c := model.Calendar{
		ID:          it.Metadata.Name,
		DisplayName: it.Spec.DisplayName,
		Visible:     it.Spec.Visible == nil || *it.Spec.Visible,
	}
	if it.Status != nil {
		c.MinMonth = it.Status.RangeStartMonth
		c.MaxMonth = it.Status.RangeEndMonth
		c.RangeEndDate = it.Status.RangeEndDate
	}
	return c
}

// ListEvents fetches the events of q.Calendar within [q.From, q.To].
func (c *Client) ListEvents(ctx context.Context, q source.EventQuery) ([]model.Event, error) {
	page := q.Page
	if page <= 0 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(q.Size))
	params.Set("calendar", q.Calendar)
	params.Set("from", datekey.ISO(q.From))
	params.Set("to", datekey.ISO(q.To))

	var out listResult[eventItem]
	if err := c.getJSON(ctx, "list events", eventsPath+"?"+params.Encode(), &out); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(out.Items))
	for _, it := range out.Items {
		if it.Metadata.DeletionTimestamp != "" {
			continue
		}
		events = append(events, it.toEvent())
	}
	return events, nil
}

// ListCalendars fetches one page of calendar metadata.
func (c *Client) ListCalendars(ctx context.Context, page, size int) ([]model.Calendar, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))

	var out listResult[calendarItem]
	if err := c.getJSON(ctx, "list calendars", calendarsPath+"?"+params.Encode(), &out); err != nil {
		return nil, err
	}

	calendars := make([]model.Calendar, 0, len(out.Items))
	for _, it := range out.Items {
		calendars = append(calendars, it.toCalendar())
	}
	return calendars, nil
}

// LookupPermalink fetches a post and returns its normalized permalink.
func (c *Client) LookupPermalink(ctx context.Context, postID string) (string, error) {
	var out postItem
	err := c.getJSON(ctx, "get post", postsPath+url.PathEscape(postID), &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", fmt.Errorf("post %q: %w", postID, source.ErrNotFound)
		}
		return "", err
	}
	if out.Status == nil {
		return "", nil
	}
	return model.NormalizePermalink(out.Status.Permalink), nil
}

func (c *Client) getJSON(ctx context.Context, op, pathAndQuery string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	appLog.Debug("remote request", "op", op, "path", req.URL.Path)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: op, Code: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
