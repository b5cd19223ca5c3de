package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/ics"
)

func handleListEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events := deps.Events.Load(r.Context())

		if s := r.URL.Query().Get("date"); s != "" {
			day, err := event.ParseDate(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "date must be YYYY-MM-DD")
				return
			}
			events = calendar.SortByTime(calendar.EventsOn(events, day))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}
}

func handleDeleteEvent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		found, err := deps.Events.Delete(r.Context(), id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete event: %v", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleExportICS(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events := deps.Events.Load(r.Context())
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="chatcal.ics"`)
		if err := ics.Write(w, events, deps.now()); err != nil {
			slog.Error("writing ics export", "events", len(events), "error", err)
		}
	}
}

// handleCalendarView renders /calendar/{mode}. "date" moves the cursors,
// "selected" picks the month view's agenda day; both default to today.
func handleCalendarView(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := calendar.ParseMode(chi.URLParam(r, "mode"))
		if err != nil {
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
			return
		}

		now := deps.now()
		nav := calendar.NewNavigator(now)
		nav.SetMode(mode)

		q := r.URL.Query()
		if s := q.Get("date"); s != "" {
			d, err := event.ParseDate(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "date must be YYYY-MM-DD")
				return
			}
			nav.Goto(d)
		}
		if s := q.Get("selected"); s != "" {
			d, err := event.ParseDate(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "selected must be YYYY-MM-DD")
				return
			}
			nav.Select(d)
		}

		view := nav.Render(deps.Events.Load(r.Context()), now)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(view)
	}
}
