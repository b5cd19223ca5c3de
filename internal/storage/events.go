package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kalambet/chatcal/internal/event"
)

// EventsKey is the fixed key holding the JSON array of calendar events.
const EventsKey = "calendarEvents"

// KeyValue is the on-device storage the EventStore persists through.
// Implemented by Store.
type KeyValue interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Updater is implemented by stores that can read and rewrite one key
// atomically, also against other processes. Store does this with a
// BEGIN IMMEDIATE transaction.
type Updater interface {
	UpdateItem(ctx context.Context, key string, fn func(value string, ok bool) (string, error)) error
}

// errUnchanged aborts an update without writing.
var errUnchanged = errors.New("events unchanged")

// EventStore is the append-only event collection. The whole array is the
// unit of persistence: every mutation reads, modifies and rewrites it.
type EventStore struct {
	kv     KeyValue
	logger *slog.Logger

	// writeMu serializes read-modify-write cycles within the process. Across
	// processes the Updater transaction does.
	writeMu sync.Mutex

	subMu  sync.Mutex
	nextID int
	subs   map[int]func([]event.CalendarEvent)
}

// NewEventStore creates an EventStore on top of kv.
func NewEventStore(kv KeyValue) *EventStore {
	return &EventStore{
		kv:     kv,
		logger: slog.Default(),
		subs:   make(map[int]func([]event.CalendarEvent)),
	}
}

// Load returns the persisted events. Missing or unreadable data yields an
// empty collection; the failure is logged, never returned.
func (s *EventStore) Load(ctx context.Context) []event.CalendarEvent {
	events, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("loading events from storage", "error", err)
		return []event.CalendarEvent{}
	}
	return events
}

func (s *EventStore) read(ctx context.Context) ([]event.CalendarEvent, error) {
	raw, ok, err := s.kv.GetItem(ctx, EventsKey)
	if err != nil {
		return nil, err
	}
	return decodeEvents(raw, ok)
}

func decodeEvents(raw string, ok bool) ([]event.CalendarEvent, error) {
	if !ok || raw == "" {
		return []event.CalendarEvent{}, nil
	}
	var events []event.CalendarEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("parsing stored events: %w", err)
	}
	if events == nil {
		events = []event.CalendarEvent{}
	}
	return events, nil
}

// update runs one read-modify-write cycle. A failed read aborts it, so a
// transient storage error can never overwrite the collection. Stored data
// that does not parse is logged and replaced.
func (s *EventStore) update(ctx context.Context, change func([]event.CalendarEvent) ([]event.CalendarEvent, error)) ([]event.CalendarEvent, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var result []event.CalendarEvent
	apply := func(raw string, ok bool) (string, error) {
		current, err := decodeEvents(raw, ok)
		if err != nil {
			s.logger.Warn("replacing unreadable events", "error", err)
			current = []event.CalendarEvent{}
		}
		next, err := change(current)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("encoding events: %w", err)
		}
		result = next
		return string(data), nil
	}

	if u, ok := s.kv.(Updater); ok {
		if err := u.UpdateItem(ctx, EventsKey, apply); err != nil {
			return nil, err
		}
		return result, nil
	}

	raw, ok, err := s.kv.GetItem(ctx, EventsKey)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	value, err := apply(raw, ok)
	if err != nil {
		return nil, err
	}
	if err := s.kv.SetItem(ctx, EventsKey, value); err != nil {
		return nil, err
	}
	return result, nil
}

// AppendAll appends newEvents after the persisted ones, writes the full
// array back and returns it. An empty newEvents rewrites the collection
// unchanged. Subscribers are notified after a successful write.
func (s *EventStore) AppendAll(ctx context.Context, newEvents []event.CalendarEvent) ([]event.CalendarEvent, error) {
	all, err := s.update(ctx, func(current []event.CalendarEvent) ([]event.CalendarEvent, error) {
		return append(current, newEvents...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving events: %w", err)
	}

	s.logger.Debug("events appended", "added", len(newEvents), "total", len(all))
	s.notify(all)
	return all, nil
}

// Delete removes the event with the given id. It reports whether an event
// was removed.
func (s *EventStore) Delete(ctx context.Context, id string) (bool, error) {
	kept, err := s.update(ctx, func(current []event.CalendarEvent) ([]event.CalendarEvent, error) {
		kept := make([]event.CalendarEvent, 0, len(current))
		for _, e := range current {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(current) {
			return nil, errUnchanged
		}
		return kept, nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting event %s: %w", id, err)
	}

	s.notify(kept)
	return true, nil
}

// Clear removes the stored collection and returns how many events it held.
func (s *EventStore) Clear(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, ok, err := s.kv.GetItem(ctx, EventsKey)
	if err != nil {
		return 0, fmt.Errorf("reading events: %w", err)
	}
	// Unparsable data is dropped all the same; it just counts as nothing.
	current, _ := decodeEvents(raw, ok)
	n := len(current)
	if err := s.kv.RemoveItem(ctx, EventsKey); err != nil && !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("clearing events: %w", err)
	}

	s.logger.Info("events cleared", "removed", n)
	s.notify([]event.CalendarEvent{})
	return n, nil
}

// Subscribe registers fn to be called synchronously with the full
// collection after every successful mutation. The returned func removes
// the subscription.
func (s *EventStore) Subscribe(fn func([]event.CalendarEvent)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *EventStore) notify(all []event.CalendarEvent) {
	s.subMu.Lock()
	fns := make([]func([]event.CalendarEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		snapshot := make([]event.CalendarEvent, len(all))
		copy(snapshot, all)
		fn(snapshot)
	}
}
