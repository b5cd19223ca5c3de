package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/proxy"
	"github.com/kalambet/chatcal/internal/storage"
)

var fixedNow = time.Date(2024, 6, 5, 12, 0, 0, 0, time.Local)

func newTestEventStore(t *testing.T, events ...event.CalendarEvent) *storage.EventStore {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	es := storage.NewEventStore(db)
	if len(events) > 0 {
		if _, err := es.AppendAll(context.Background(), events); err != nil {
			t.Fatalf("seeding events: %v", err)
		}
	}
	return es
}

func seedEvents() []event.CalendarEvent {
	return []event.CalendarEvent{
		{ID: "e1", Event: "Lunch", Time: "13:00", Priority: event.PriorityMedium, Date: "2024-06-05"},
		{ID: "e2", Event: "Standup", Time: "09:00", Priority: event.PriorityLow, Date: "2024-06-05"},
		{ID: "e3", Event: "Gym", Time: "18:30", Priority: event.PriorityHigh, Date: "2024-06-07"},
	}
}

func newEventsHandler(t *testing.T, token string) (http.Handler, *storage.EventStore) {
	t.Helper()
	es := newTestEventStore(t, seedEvents()...)
	h := NewHandler(Deps{
		Proxy:  proxy.NewClient(""),
		Events: es,
		Token:  token,
		Now:    func() time.Time { return fixedNow },
	})
	return h, es
}

func TestListEvents(t *testing.T) {
	h, _ := newEventsHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var all []event.CalendarEvent
	json.NewDecoder(rr.Body).Decode(&all)
	if len(all) != 3 {
		t.Errorf("got %d events, want 3", len(all))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events?date=2024-06-05", nil))
	var day []event.CalendarEvent
	json.NewDecoder(rr.Body).Decode(&day)
	if len(day) != 2 || day[0].ID != "e2" || day[1].ID != "e1" {
		t.Errorf("day events = %+v, want e2 then e1", day)
	}
}

func TestListEvents_BadDate(t *testing.T) {
	h, _ := newEventsHandler(t, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events?date=tomorrow", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestDeleteEvent(t *testing.T) {
	h, es := newEventsHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/events/e1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if n := len(es.Load(context.Background())); n != 2 {
		t.Errorf("events after delete = %d, want 2", n)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/events/e1", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestEvents_BearerAuth(t *testing.T) {
	h, _ := newEventsHandler(t, "secret")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events.ics?token=secret", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("query token: status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events.ics?token=wrong", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token: status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Basic c2VjcmV0")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("basic auth: status = %d, want 401", rr.Code)
	}

	// Health stays open.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d", rr.Code)
	}
}

func TestCalendarView_Week(t *testing.T) {
	h, _ := newEventsHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/calendar/week?date=2024-06-05", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var view calendar.View
	if err := json.NewDecoder(rr.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Week == nil {
		t.Fatal("week projection missing")
	}
	// Wednesday 2024-06-05 is index 3 of the week starting Sunday 2024-06-02.
	if got := view.Week.Days[3].Slots[calendar.Morning]; len(got) != 1 || got[0].ID != "e2" {
		t.Errorf("Wednesday morning = %+v", got)
	}
	if got := view.Week.Days[5].Slots[calendar.Night]; len(got) != 1 || got[0].ID != "e3" {
		t.Errorf("Friday night = %+v", got)
	}
}

func TestCalendarView_MonthSelected(t *testing.T) {
	h, _ := newEventsHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/calendar/month?selected=2024-06-07", nil))
	var view calendar.View
	json.NewDecoder(rr.Body).Decode(&view)
	if view.Month == nil || view.Month.Month != time.June {
		t.Fatalf("month view = %+v", view.Month)
	}
	if len(view.Month.SelectedEvents) != 1 || view.Month.SelectedEvents[0].ID != "e3" {
		t.Errorf("selected events = %+v", view.Month.SelectedEvents)
	}
}

func TestCalendarView_UnknownMode(t *testing.T) {
	h, _ := newEventsHandler(t, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/calendar/year", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestExportICS(t *testing.T) {
	h, _ := newEventsHandler(t, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/events.ics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rr.Body.String()
	if strings.Count(body, "BEGIN:VEVENT") != 3 || !strings.Contains(body, "SUMMARY:Lunch") {
		t.Errorf("calendar body:\n%s", body)
	}
}

// brokenWriter accepts headers but fails every body write, like a client
// that hung up.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func (w brokenWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func TestExportICS_LogsWriteError(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h, _ := newEventsHandler(t, "")
	h.ServeHTTP(brokenWriter{httptest.NewRecorder()}, httptest.NewRequest(http.MethodGet, "/events.ics", nil))

	if out := logs.String(); !strings.Contains(out, "writing ics export") || !strings.Contains(out, "connection reset") {
		t.Errorf("write error not logged:\n%s", out)
	}
}
