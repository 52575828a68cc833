package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	ws "github.com/coder/websocket"

	appLog "schedview/internal/log"
	"schedview/internal/render"
	"schedview/internal/widget"
)

const maxBodyBytes = 1 << 16

// actionRequest is the body of POST /w/{id}/actions.
type actionRequest struct {
	Action string  `json:"action"`
	Day    string  `json:"day,omitempty"`
	Year   int     `json:"year,omitempty"`
	Month  int     `json:"month,omitempty"`
	Delta  float64 `json:"delta,omitempty"`
	Value  *string `json:"value,omitempty"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// lookup resolves the {id} path value, writing 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, ok := s.sessions.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown widget session")
		return nil, false
	}
	return sess, true
}

// handleIndex opens a session for the default calendar and redirects to it.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.create(r.Context(), s.defaultParams())
	http.Redirect(w, r, "/w/"+sess.id, http.StatusSeeOther)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	p := s.defaultParams()
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess := s.sessions.create(r.Context(), p)
	writeJSON(w, http.StatusCreated, map[string]string{"id": sess.id})
}

// handlePage serves the full document. ?static=1 omits the live script.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.renderer.Page(w, render.Page{
		ID:   sess.id,
		View: sess.widget.View(),
		Live: r.URL.Query().Get("static") == "",
	})
	if err != nil {
		appLog.Error("render page failed", err, "session", sess.id)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "unknown widget session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFragment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeFragment(w, sess)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.widget.View())
}

func (s *Server) writeFragment(w http.ResponseWriter, sess *session) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Fragment(w, sess.widget.View()); err != nil {
		appLog.Error("render fragment failed", err, "session", sess.id)
	}
}

// handleAction runs one widget handler and responds with the fragment once
// the handler has settled.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := dispatchAction(r, sess.widget, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appLog.Debug("widget action", "session", sess.id, "action", req.Action)
	s.writeFragment(w, sess)
}

func dispatchAction(r *http.Request, wd *widget.Widget, req actionRequest) error {
	ctx := r.Context()
	value := ""
	if req.Value != nil {
		value = *req.Value
	}

	switch req.Action {
	case "prev-month":
		wd.ShiftMonth(ctx, -1)
	case "next-month":
		wd.ShiftMonth(ctx, 1)
	case "prev-week":
		wd.ShiftWeek(ctx, -1)
	case "next-week":
		wd.ShiftWeek(ctx, 1)
	case "wheel":
		wd.Wheel(ctx, req.Delta)
	case "today":
		wd.Today(ctx)
	case "jump-month":
		if value != "" {
			wd.JumpToMonthKey(ctx, value)
		} else {
			wd.JumpToMonth(ctx, req.Year, req.Month)
		}
	case "jump-date":
		wd.JumpToDate(ctx, req.Day)
	case "select-day":
		wd.SelectDay(ctx, req.Day)
	case "reset":
		wd.ResetToUpcoming()
	case "toggle-picker":
		wd.TogglePicker()
	case "close-picker":
		wd.ClosePicker()
	case "picker-year":
		wd.SelectPickerYear(req.Year)
	case "picker-month":
		wd.SelectPickerMonth(req.Month)
	case "apply-picker":
		if req.Year != 0 || req.Month != 0 {
			wd.ApplyMonthSelection(ctx, req.Year, req.Month)
		} else {
			wd.ApplyPicker(ctx)
		}
	case "refresh":
		wd.Refresh(ctx)
	case "set-calendar":
		wd.SetCalendar(ctx, value)
	case "set-show-title":
		wd.SetShowTitle(req.Value)
	case "set-render-style":
		wd.SetRenderStyle(value)
	default:
		return fmt.Errorf("unknown action %q", strings.TrimSpace(req.Action))
	}
	return nil
}

// handleDocument forwards a page-level event to the session's document
// bus. Events only reach the widget while its picker is open.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var ev widget.DocumentEvent
	if err := decodeBody(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := sess.bus.Dispatch(ev)
	writeJSON(w, http.StatusOK, map[string]int{"delivered": n})
}

// handleStream upgrades to a websocket that receives every render of the
// session.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := ws.Accept(w, r, nil)
	if err != nil {
		appLog.Error("websocket accept failed", err, "session", sess.id)
		return
	}
	sess.stream.run(r.Context(), conn)
	sess.touch(s.sessions.now())
}
