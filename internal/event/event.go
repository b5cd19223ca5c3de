package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the persisted format of CalendarEvent.Date.
const DateLayout = "2006-01-02"

// Priority is the urgency label attached to an event.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority lower-cases s and maps anything that is not a known
// priority (including the empty string) to PriorityLow.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityLow
	}
}

// CalendarEvent is the only persisted entity. The JSON shape is the element
// type of the array stored under storage.EventsKey.
type CalendarEvent struct {
	ID        string   `json:"id"`
	Event     string   `json:"event"`
	Time      string   `json:"time"`
	Priority  Priority `json:"priority"`
	Date      string   `json:"date"`
	Timestamp int64    `json:"timestamp"`
}

// NewID returns a fresh event id. Version 7 UUIDs embed the creation
// timestamp, so ids sort in creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// FormatDate renders t's local calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string as local midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.Local)
}

// ClockValue turns "HH:MM" into the integer HHMM ("09:30" -> 930).
// It returns -1 when the remainder is not numeric.
func ClockValue(hhmm string) int {
	v, err := strconv.Atoi(strings.Replace(hhmm, ":", "", 1))
	if err != nil {
		return -1
	}
	return v
}

// Hour returns the hour component of "HH:MM".
func Hour(hhmm string) (int, bool) {
	h, _, _ := strings.Cut(hhmm, ":")
	v, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, false
	}
	return v, true
}

// NowClock returns t's wall clock time as HHMM.
func NowClock(t time.Time) int {
	return t.Hour()*100 + t.Minute()
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
