// Package calendar projects stored events into day, week and month views.
// Everything here is a pure function of the events, a cursor date and the
// current time.
package calendar

import (
	"sort"
	"time"

	"github.com/kalambet/chatcal/internal/event"
)

// Slot is a coarse time-of-day bucket used by the week view.
type Slot int

const (
	Morning Slot = iota
	Afternoon
	Night
)

var slotNames = [...]string{"Morning", "Afternoon", "Night"}

func (s Slot) String() string {
	if s < Morning || s > Night {
		return "Unknown"
	}
	return slotNames[s]
}

// Slots lists the buckets in display order.
var Slots = [3]Slot{Morning, Afternoon, Night}

// SlotOf classifies an "HH:MM" time. Anything whose hour cannot be read
// falls through to Night.
func SlotOf(hhmm string) Slot {
	h, ok := event.Hour(hhmm)
	switch {
	case !ok:
		return Night
	case h < 12:
		return Morning
	case h < 18:
		return Afternoon
	default:
		return Night
	}
}

// EventsOn returns the events dated on day, in store order.
func EventsOn(events []event.CalendarEvent, day time.Time) []event.CalendarEvent {
	key := event.FormatDate(day)
	out := make([]event.CalendarEvent, 0)
	for _, e := range events {
		if e.Date == key {
			out = append(out, e)
		}
	}
	return out
}

// SortByTime returns a copy of events ordered by clock value. Events with
// equal times keep their relative order.
func SortByTime(events []event.CalendarEvent) []event.CalendarEvent {
	out := make([]event.CalendarEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return event.ClockValue(out[i].Time) < event.ClockValue(out[j].Time)
	})
	return out
}

// DayView is the projection of a single date.
type DayView struct {
	Date    time.Time             `json:"date"`
	Events  []event.CalendarEvent `json:"events"`
	Nearest *event.CalendarEvent  `json:"nearest,omitempty"`
}

// Day lists the events on date sorted by time and marks the nearest one:
// the first event at or after now's wall clock, or the last event of the
// day when all of them are already past.
func Day(events []event.CalendarEvent, date, now time.Time) DayView {
	v := DayView{Date: dateOnly(date), Events: SortByTime(EventsOn(events, date))}
	if len(v.Events) == 0 {
		return v
	}

	clock := event.NowClock(now)
	for i := range v.Events {
		if event.ClockValue(v.Events[i].Time) >= clock {
			v.Nearest = &v.Events[i]
			return v
		}
	}
	v.Nearest = &v.Events[len(v.Events)-1]
	return v
}

// StartOfWeek returns the Sunday on or before t, at local midnight.
func StartOfWeek(t time.Time) time.Time {
	d := dateOnly(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// DayBucket holds one week column split by slot.
type DayBucket struct {
	Date  time.Time                `json:"date"`
	Slots [3][]event.CalendarEvent `json:"slots"`
}

// WeekView is seven consecutive days starting on a Sunday.
type WeekView struct {
	Start time.Time    `json:"start"`
	Days  [7]DayBucket `json:"days"`
}

// Week buckets the events of the seven days starting at weekStart.
// Within a slot events keep store order.
func Week(events []event.CalendarEvent, weekStart time.Time) WeekView {
	start := dateOnly(weekStart)
	v := WeekView{Start: start}
	for i := range v.Days {
		d := start.AddDate(0, 0, i)
		v.Days[i].Date = d
		for s := range v.Days[i].Slots {
			v.Days[i].Slots[s] = make([]event.CalendarEvent, 0)
		}
		for _, e := range EventsOn(events, d) {
			s := SlotOf(e.Time)
			v.Days[i].Slots[s] = append(v.Days[i].Slots[s], e)
		}
	}
	return v
}

// Cell is one square of the month grid.
type Cell struct {
	Date       time.Time             `json:"date"`
	OtherMonth bool                  `json:"other_month"`
	Today      bool                  `json:"today"`
	Selected   bool                  `json:"selected"`
	Events     []event.CalendarEvent `json:"events"`
}

// MonthView is a six-week grid plus the selected date's agenda.
type MonthView struct {
	Year           int                   `json:"year"`
	Month          time.Month            `json:"month"`
	Cells          [42]Cell              `json:"cells"`
	Selected       time.Time             `json:"selected"`
	SelectedEvents []event.CalendarEvent `json:"selected_events"`
}

// GridStart returns the first cell date of the month grid containing cursor.
func GridStart(cursor time.Time) time.Time {
	first := firstOfMonth(cursor)
	return first.AddDate(0, 0, -int(first.Weekday()))
}

// Month builds the 42-cell grid for the month containing cursor. Cells
// outside that month are flagged OtherMonth.
func Month(events []event.CalendarEvent, cursor, selected, today time.Time) MonthView {
	first := firstOfMonth(cursor)
	start := GridStart(first)
	todayKey := event.FormatDate(today)
	selKey := event.FormatDate(selected)

	v := MonthView{
		Year:           first.Year(),
		Month:          first.Month(),
		Selected:       dateOnly(selected),
		SelectedEvents: SortByTime(EventsOn(events, selected)),
	}
	for i := range v.Cells {
		d := start.AddDate(0, 0, i)
		key := event.FormatDate(d)
		v.Cells[i] = Cell{
			Date:       d,
			OtherMonth: d.Month() != first.Month(),
			Today:      key == todayKey,
			Selected:   key == selKey,
			Events:     EventsOn(events, d),
		}
	}
	return v
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
