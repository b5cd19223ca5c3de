package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/extract"
)

// ErrEmptyInput is returned by Send for blank input.
var ErrEmptyInput = errors.New("empty message")

// Transport delivers the conversation to the assistant and returns its reply.
type Transport interface {
	Complete(ctx context.Context, history []Message) (Message, error)
}

// Appender persists newly extracted events. Implemented by storage.EventStore.
type Appender interface {
	AppendAll(ctx context.Context, events []event.CalendarEvent) ([]event.CalendarEvent, error)
}

// Entry is one rendered transcript line.
type Entry struct {
	ID         string
	Role       string
	Text       string
	EventAdded bool
}

// Session is one mounted chat screen: its messages, the wrapped-prompt to
// original-utterance map, and which assistant replies were already
// processed and credited with an event. Reset clears all of it.
type Session struct {
	transport Transport
	extractor *extract.Extractor
	store     Appender
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.Mutex
	messages  []Message
	prompts   map[string]string
	processed map[string]struct{}
	credited  map[string]struct{}
	err       error
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for the date embedded in wrapped prompts.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates an empty Session.
func New(transport Transport, extractor *extract.Extractor, store Appender, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		extractor: extractor,
		store:     store,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.Reset()
	return s
}

// Reset drops all session state, as on unmounting the chat screen.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.prompts = make(map[string]string)
	s.processed = make(map[string]struct{})
	s.credited = make(map[string]struct{})
	s.err = nil
}

// Send wraps raw in the instruction prompt, sends the conversation and
// processes the reply for an event. A transport error is kept in Err and
// returned; the transcript up to that point is preserved.
func (s *Session) Send(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyInput
	}

	wrapped := BuildPrompt(raw, s.now())
	user := TextMessage(uuid.NewString(), RoleUser, wrapped)

	s.mu.Lock()
	s.prompts[wrapped] = raw
	s.messages = append(s.messages, user)
	history := make([]Message, len(s.messages))
	copy(history, s.messages)
	s.mu.Unlock()

	reply, err := s.transport.Complete(ctx, history)
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.logger.Error("chat request failed", "error", err)
		return fmt.Errorf("sending message: %w", err)
	}
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.Role == "" {
		reply.Role = RoleAssistant
	}

	s.mu.Lock()
	s.messages = append(s.messages, reply)
	s.err = nil
	s.mu.Unlock()

	s.Process(ctx, reply)
	return nil
}

// Process runs event extraction on an assistant message at most once per
// message id and reports whether the message is credited with an event.
func (s *Session) Process(ctx context.Context, msg Message) bool {
	if msg.Role != RoleAssistant {
		return false
	}

	s.mu.Lock()
	if _, done := s.processed[msg.ID]; done {
		_, credited := s.credited[msg.ID]
		s.mu.Unlock()
		return credited
	}
	s.processed[msg.ID] = struct{}{}
	s.mu.Unlock()

	ev, ok := s.extractor.Extract(msg.Text())
	if !ok {
		return false
	}

	if _, err := s.store.AppendAll(ctx, []event.CalendarEvent{ev}); err != nil {
		s.logger.Error("storing extracted event", "message_id", msg.ID, "error", err)
		return false
	}
	s.logger.Info("event added", "message_id", msg.ID, "event", ev.Event, "date", ev.Date, "time", ev.Time)

	s.mu.Lock()
	s.credited[msg.ID] = struct{}{}
	s.mu.Unlock()
	return true
}

// Err returns the last transport error, or nil after a successful exchange.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Messages returns a copy of the raw conversation as sent and received.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Transcript renders the conversation for display: user turns show the
// original utterance, credited assistant turns show EventAddedText.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.messages))
	for _, m := range s.messages {
		entry := Entry{ID: m.ID, Role: m.Role}
		switch m.Role {
		case RoleUser:
			texts := make([]string, 0, len(m.Parts))
			for _, p := range m.Parts {
				if p.Type != PartText {
					continue
				}
				if orig, ok := s.prompts[p.Text]; ok {
					texts = append(texts, orig)
				} else {
					texts = append(texts, p.Text)
				}
			}
			entry.Text = strings.Join(texts, " ")
		default:
			if _, ok := s.credited[m.ID]; ok {
				entry.Text = EventAddedText
				entry.EventAdded = true
			} else {
				entry.Text = m.Text()
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
