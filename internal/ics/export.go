// Package ics renders stored events as an iCalendar feed.
package ics

import (
	"io"
	"log/slog"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/kalambet/chatcal/internal/event"
)

const (
	ProductID   = "-//kalambet//chatcal//EN"
	uidSuffix   = "@chatcal"
	defaultSpan = time.Hour
	timeLayout  = "2006-01-02 15:04"
)

// Priorities maps event priorities onto RFC 5545 PRIORITY values.
var Priorities = map[event.Priority]string{
	event.PriorityHigh:   "1",
	event.PriorityMedium: "5",
	event.PriorityLow:    "9",
}

// Build converts events into a calendar. Events with an unreadable date are
// skipped; events with an unreadable time become all-day entries.
func Build(events []event.CalendarEvent, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for _, e := range events {
		day, err := event.ParseDate(e.Date)
		if err != nil {
			slog.Warn("ics: skipping event with bad date", "id", e.ID, "date", e.Date)
			continue
		}

		ve := cal.AddEvent(e.ID + uidSuffix)
		ve.SetSummary(e.Event)
		ve.SetDtStampTime(now)
		if e.Timestamp > 0 {
			ve.SetCreatedTime(time.UnixMilli(e.Timestamp))
		}
		ve.SetProperty(ical.ComponentPropertyPriority, priorityValue(e.Priority))
		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(event.ParsePriority(string(e.Priority)))))

		start, err := time.ParseInLocation(timeLayout, e.Date+" "+e.Time, time.Local)
		if err != nil {
			ve.SetAllDayStartAt(day)
			ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
			continue
		}
		ve.SetStartAt(start)
		ve.SetEndAt(start.Add(defaultSpan))
	}
	return cal
}

func priorityValue(p event.Priority) string {
	return Priorities[event.ParsePriority(string(p))]
}

// Write serializes events as iCalendar text to w.
func Write(w io.Writer, events []event.CalendarEvent, now time.Time) error {
	_, err := io.WriteString(w, Build(events, now).Serialize())
	return err
}
