package extract

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/chatcal/internal/event"
)

// requiredKeys must all appear, quoted, inside a candidate object.
var requiredKeys = []string{`"Event"`, `"Time"`, `"Priority"`, `"Date"`}

// payload is the JSON shape the assistant is instructed to reply with.
type payload struct {
	Event    any `json:"Event"`
	Time     any `json:"Time"`
	Priority any `json:"Priority"`
	Date     any `json:"Date"`
}

// Extractor turns assistant reply text into a CalendarEvent.
type Extractor struct {
	now    func() time.Time
	newID  func() string
	strict bool
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the time source used for CalendarEvent.Timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithIDFunc sets the id generator.
func WithIDFunc(fn func() string) Option {
	return func(e *Extractor) { e.newID = fn }
}

// WithStrict toggles date/time syntax validation. Strict is the default.
func WithStrict(strict bool) Option {
	return func(e *Extractor) { e.strict = strict }
}

// NewExtractor creates an Extractor with strict validation enabled.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		now:    time.Now,
		newID:  event.NewID,
		strict: true,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract looks for a single event object in reply. Any miss (no candidate,
// malformed JSON, missing or invalid field) returns false: the reply is
// ordinary conversation, not an error.
func (e *Extractor) Extract(reply string) (event.CalendarEvent, bool) {
	candidate, ok := FindCandidate(reply)
	if !ok {
		return event.CalendarEvent{}, false
	}

	var p payload
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		e.logger.Debug("event candidate is not valid JSON", "error", err)
		return event.CalendarEvent{}, false
	}

	title, okTitle := nonEmpty(p.Event)
	clock, okTime := nonEmpty(p.Time)
	prio, okPrio := nonEmpty(p.Priority)
	date, okDate := nonEmpty(p.Date)
	if !okTitle || !okTime || !okPrio || !okDate {
		e.logger.Debug("event candidate is missing required fields", "candidate", candidate)
		return event.CalendarEvent{}, false
	}

	if e.strict {
		var err error
		if clock, err = NormalizeTime(clock); err != nil {
			e.logger.Warn("rejecting extracted event", "field", "Time", "value", clock, "error", err)
			return event.CalendarEvent{}, false
		}
		if err = ValidateDate(date); err != nil {
			e.logger.Warn("rejecting extracted event", "field", "Date", "value", date, "error", err)
			return event.CalendarEvent{}, false
		}
	}

	return event.CalendarEvent{
		ID:        e.newID(),
		Event:     title,
		Time:      clock,
		Priority:  event.ParsePriority(prio),
		Date:      date,
		Timestamp: event.Millis(e.now()),
	}, true
}

// nonEmpty accepts only non-blank JSON strings.
func nonEmpty(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// FindCandidate returns the first outermost balanced {...} span in text that
// contains every required key literal. Braces inside JSON strings are
// ignored, and an opening brace that never closes is skipped so a later
// object can still match.
func FindCandidate(text string) (string, bool) {
	opens, closes := braceSpans(text)
	for i := 0; i < len(opens); {
		end := closes[i]
		if end < 0 {
			i++
			continue
		}
		if span := text[opens[i] : end+1]; containsAll(span, requiredKeys) {
			return span, true
		}
		for i < len(opens) && opens[i] < end {
			i++
		}
	}
	return "", false
}

// braceSpans pairs braces in a single pass. opens lists every '{' outside a
// string in order; closes[i] is the index of the '}' matching opens[i], or
// -1 when it never closes.
func braceSpans(text string) (opens, closes []int) {
	var stack []int
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			// Quotes only count once inside an object; prose may use them freely.
			inString = len(stack) > 0
		case '{':
			stack = append(stack, len(opens))
			opens = append(opens, i)
			closes = append(closes, -1)
		case '}':
			if n := len(stack); n > 0 {
				closes[stack[n-1]] = i
				stack = stack[:n-1]
			}
		}
	}
	return opens, closes
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
