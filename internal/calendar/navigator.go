package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/chatcal/internal/event"
)

// Mode selects which projection the navigator renders.
type Mode int

const (
	ModeDay Mode = iota
	ModeWeek
	ModeMonth
)

func (m Mode) String() string {
	switch m {
	case ModeDay:
		return "day"
	case ModeWeek:
		return "week"
	case ModeMonth:
		return "month"
	}
	return "unknown"
}

// ParseMode accepts "day", "week" or "month" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day":
		return ModeDay, nil
	case "week":
		return ModeWeek, nil
	case "month":
		return ModeMonth, nil
	}
	return 0, fmt.Errorf("unknown calendar mode %q (want day, week or month)", s)
}

// View is the output of Navigator.Render. Exactly one of the projections is
// set, matching Mode.
type View struct {
	Mode  Mode       `json:"-"`
	Day   *DayView   `json:"day,omitempty"`
	Week  *WeekView  `json:"week,omitempty"`
	Month *MonthView `json:"month,omitempty"`
}

// Navigator holds the display mode and one cursor per mode. Cursors are
// independent: moving in week mode leaves the day and month cursors alone.
type Navigator struct {
	Mode      Mode
	Day       time.Time
	WeekStart time.Time
	Month     time.Time
	Selected  time.Time
}

// NewNavigator starts in day mode with every cursor on today.
func NewNavigator(today time.Time) *Navigator {
	n := &Navigator{}
	n.reset(today)
	return n
}

func (n *Navigator) reset(today time.Time) {
	d := dateOnly(today)
	n.Day = d
	n.WeekStart = StartOfWeek(d)
	n.Month = firstOfMonth(d)
	n.Selected = d
}

// Prev moves the active cursor back one day, week or month.
func (n *Navigator) Prev() { n.shift(-1) }

// Next moves the active cursor forward one day, week or month.
func (n *Navigator) Next() { n.shift(1) }

func (n *Navigator) shift(dir int) {
	switch n.Mode {
	case ModeDay:
		n.Day = n.Day.AddDate(0, 0, dir)
	case ModeWeek:
		n.WeekStart = n.WeekStart.AddDate(0, 0, 7*dir)
	case ModeMonth:
		n.Month = firstOfMonth(n.Month).AddDate(0, dir, 0)
	}
}

// Today resets all cursors and the selected date to today. The mode is kept.
func (n *Navigator) Today(today time.Time) { n.reset(today) }

// Goto moves the day, week and month cursors so each covers date. The
// selected date is left alone.
func (n *Navigator) Goto(date time.Time) {
	d := dateOnly(date)
	n.Day = d
	n.WeekStart = StartOfWeek(d)
	n.Month = firstOfMonth(d)
}

// SetMode switches the rendered projection without touching any cursor.
func (n *Navigator) SetMode(m Mode) { n.Mode = m }

// Select sets the month view's selected date.
func (n *Navigator) Select(date time.Time) { n.Selected = dateOnly(date) }

// Title is a short heading for the active projection.
func (n *Navigator) Title() string {
	switch n.Mode {
	case ModeWeek:
		end := n.WeekStart.AddDate(0, 0, 6)
		return fmt.Sprintf("%s - %s", n.WeekStart.Format("Jan 2"), end.Format("Jan 2, 2006"))
	case ModeMonth:
		return n.Month.Format("January 2006")
	default:
		return n.Day.Format("Monday, January 2, 2006")
	}
}

// Render recomputes the active projection from events.
func (n *Navigator) Render(events []event.CalendarEvent, now time.Time) View {
	v := View{Mode: n.Mode}
	switch n.Mode {
	case ModeWeek:
		w := Week(events, n.WeekStart)
		v.Week = &w
	case ModeMonth:
		m := Month(events, n.Month, n.Selected, now)
		v.Month = &m
	default:
		d := Day(events, n.Day, now)
		v.Day = &d
	}
	return v
}
