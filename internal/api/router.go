package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/proxy"
)

// EventStore is the persisted event list as seen by the HTTP and MCP layers.
// Implemented by storage.EventStore.
type EventStore interface {
	Load(ctx context.Context) []event.CalendarEvent
	AppendAll(ctx context.Context, events []event.CalendarEvent) ([]event.CalendarEvent, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Proxy           *proxy.Client
	ChatModel       string
	TranscribeModel string
	Events          EventStore
	// Token guards the event endpoints when non-empty.
	Token string
	Now   func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewHandler wires the proxy endpoints and, when Events is set, the event
// API under the optional bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Post("/api/chat", handleChat(deps))
	r.Post("/api/transcribe", handleTranscribe(deps))

	if deps.Events != nil {
		r.Group(func(r chi.Router) {
			if deps.Token != "" {
				r.Use(BearerAuth(deps.Token))
			}
			r.Get("/events", handleListEvents(deps))
			r.Delete("/events/{id}", handleDeleteEvent(deps))
			r.Get("/events.ics", handleExportICS(deps))
			r.Get("/calendar/{mode}", handleCalendarView(deps))
		})
	}

	return r
}
