// Package calendartest provides an in-process fake of the Google Calendar
// v3 events API for tests.
//
// It implements events.list, events.insert and events.delete with the
// query semantics the gateway relies on: timeMin filtering on event end,
// orderBy=startTime and maxResults. Requests must carry a bearer token;
// tokens marked with RejectToken receive 401 like an expired Google token.
//
//	srv := calendartest.NewServer()
//	defer srv.Close()
//	client, _ := calendar.NewClient(ctx, httpClient, calendar.Options{Endpoint: srv.Endpoint()})
package calendartest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// Server is a fake Calendar API server. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	events   map[string][]*calendar.Event
	nextID   int
	rejected map[string]bool
	failures []int
	delay    time.Duration
	requests int
	tokens   []string
	// onInsert, if set, may modify an inserted event before it is stored
	// and returned.
	onInsert func(*calendar.Event)
}

// NewServer starts a fake Calendar server.
func NewServer() *Server {
	s := &Server{
		events:   make(map[string][]*calendar.Event),
		rejected: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/{calendarId}/events", s.handleList)
	mux.HandleFunc("POST /calendars/{calendarId}/events", s.handleInsert)
	mux.HandleFunc("DELETE /calendars/{calendarId}/events/{eventId}", s.handleDelete)

	s.Server = httptest.NewServer(s.middleware(mux))
	return s
}

// Endpoint returns the base URL to pass as the client endpoint.
func (s *Server) Endpoint() string {
	return s.URL + "/"
}

// AddEvent stores an event directly, assigning an id when it has none.
func (s *Server) AddEvent(calendarID string, event *calendar.Event) *calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(calendarID, event)
}

// Events returns a snapshot of the events stored for calendarID.
func (s *Server) Events(calendarID string) []*calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*calendar.Event, len(s.events[calendarID]))
	copy(out, s.events[calendarID])
	return out
}

// RejectToken makes requests authorized with token fail with 401.
func (s *Server) RejectToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[token] = true
}

// FailNext makes the next request fail with the given HTTP status.
// Calls queue up.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, status)
}

// SetDelay delays every response by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// OnInsert registers a hook applied to every inserted event.
func (s *Server) OnInsert(fn func(*calendar.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInsert = fn
}

// Requests returns how many API requests reached the server.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Tokens returns the bearer tokens seen, in request order.
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// Reset clears events, counters and injected failures.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]*calendar.Event)
	s.rejected = make(map[string]bool)
	s.failures = nil
	s.delay = 0
	s.requests = 0
	s.tokens = nil
	s.onInsert = nil
}

func (s *Server) store(calendarID string, event *calendar.Event) *calendar.Event {
	if event.Id == "" {
		s.nextID++
		event.Id = fmt.Sprintf("evt%04d", s.nextID)
	}
	if event.Status == "" {
		event.Status = "confirmed"
	}
	s.events[calendarID] = append(s.events[calendarID], event)
	return event
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		s.requests++
		s.tokens = append(s.tokens, token)
		delay := s.delay
		rejected := s.rejected[token]
		var failure int
		if len(s.failures) > 0 {
			failure, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		switch {
		case !ok || token == "" || rejected:
			writeError(w, http.StatusUnauthorized, "Request had invalid authentication credentials.", "authError")
		case failure != 0:
			writeError(w, failure, http.StatusText(failure), "backendError")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var timeMin time.Time
	if v := q.Get("timeMin"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad timeMin", "badRequest")
			return
		}
		timeMin = t
	}

	maxResults := 250
	if v := q.Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Bad maxResults", "badRequest")
			return
		}
		maxResults = n
	}

	s.mu.Lock()
	var items []*calendar.Event
	for _, ev := range s.events[r.PathValue("calendarId")] {
		// Like Google, timeMin bounds the event end, not its start.
		if !timeMin.IsZero() && !eventEnd(ev).After(timeMin) {
			continue
		}
		items = append(items, ev)
	}
	s.mu.Unlock()

	if q.Get("orderBy") == "startTime" {
		sort.SliceStable(items, func(i, j int) bool {
			return eventStart(items[i]).Before(eventStart(items[j]))
		})
	}
	if len(items) > maxResults {
		items = items[:maxResults]
	}

	writeJSON(w, http.StatusOK, &calendar.Events{Kind: "calendar#events", Items: items})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var event calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event body", "parseError")
		return
	}
	if event.Start == nil || event.End == nil {
		writeError(w, http.StatusBadRequest, "Missing time information.", "required")
		return
	}

	s.mu.Lock()
	if s.onInsert != nil {
		s.onInsert(&event)
	}
	created := s.store(r.PathValue("calendarId"), &event)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	calendarID, eventID := r.PathValue("calendarId"), r.PathValue("eventId")

	s.mu.Lock()
	events := s.events[calendarID]
	idx := -1
	for i, ev := range events {
		if ev.Id == eventID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.events[calendarID] = append(events[:idx:idx], events[idx+1:]...)
	}
	s.mu.Unlock()

	if idx < 0 {
		writeError(w, http.StatusNotFound, "Not Found", "notFound")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func eventStart(ev *calendar.Event) time.Time {
	return parseEventDateTime(ev.Start)
}

func eventEnd(ev *calendar.Event) time.Time {
	if end := parseEventDateTime(ev.End); !end.IsZero() {
		return end
	}
	return eventStart(ev)
}

func parseEventDateTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
		return t
	}
	return time.Time{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, reason string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors": []map[string]string{
				{"domain": "global", "reason": reason, "message": message},
			},
		},
	})
}
