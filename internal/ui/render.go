package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/event"
)

const (
	minWidth  = 30
	cellWidth = 5
)

// RenderView draws whichever projection v holds. now marks today.
func RenderView(v calendar.View, title string, now time.Time, s Styles, width int) string {
	if width < minWidth {
		width = minWidth
	}

	var body string
	switch {
	case v.Day != nil:
		body = renderDay(*v.Day, s, width)
	case v.Week != nil:
		body = renderWeek(*v.Week, now, s, width)
	case v.Month != nil:
		body = renderMonth(*v.Month, s, width)
	}
	return lipgloss.JoinVertical(lipgloss.Left, s.Header.Render(title), "", body)
}

func eventLine(e event.CalendarEvent, nearest bool, s Styles, width int) string {
	marker := "  "
	if nearest {
		marker = s.Nearest.Render("> ")
	}
	prio := s.Priority(e.Priority).Render(fmt.Sprintf("%-6s", event.ParsePriority(string(e.Priority))))
	titleWidth := width - 2 - 6 - 1 - 6 - 1
	if titleWidth < 8 {
		titleWidth = 8
	}
	title := truncate.StringWithTail(e.Event, uint(titleWidth), "…")
	return fmt.Sprintf("%s%-6s %-*s %s", marker, e.Time, titleWidth, title, prio)
}

func renderDay(d calendar.DayView, s Styles, width int) string {
	if len(d.Events) == 0 {
		return s.Dim.Render("No events")
	}
	lines := make([]string, 0, len(d.Events))
	for _, e := range d.Events {
		nearest := d.Nearest != nil && d.Nearest.ID == e.ID
		lines = append(lines, eventLine(e, nearest, s, width))
	}
	return strings.Join(lines, "\n")
}

func renderWeek(w calendar.WeekView, now time.Time, s Styles, width int) string {
	todayKey := event.FormatDate(now)
	var sections []string
	for _, day := range w.Days {
		label := day.Date.Format("Mon Jan 2")
		if event.FormatDate(day.Date) == todayKey {
			label = s.Today.Render(label)
		} else {
			label = s.Normal.Render(label)
		}

		lines := []string{label}
		empty := true
		for _, slot := range calendar.Slots {
			evs := day.Slots[slot]
			if len(evs) == 0 {
				continue
			}
			empty = false
			for i, e := range evs {
				name := ""
				if i == 0 {
					name = slot.String()
				}
				title := truncate.StringWithTail(e.Event, uint(max(width-10-7-2, 8)), "…")
				lines = append(lines, fmt.Sprintf("  %s%-6s %s",
					s.Slot.Render(name), e.Time, s.Priority(e.Priority).Render(title)))
			}
		}
		if empty {
			lines = append(lines, s.Dim.Render("  -"))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n")
}

func renderMonth(m calendar.MonthView, s Styles, width int) string {
	var header strings.Builder
	for _, wd := range []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"} {
		header.WriteString(fmt.Sprintf("%-*s", cellWidth, wd))
	}

	rows := []string{s.Dim.Render(strings.TrimRight(header.String(), " "))}
	for week := 0; week < 6; week++ {
		var row strings.Builder
		for i := week * 7; i < week*7+7; i++ {
			row.WriteString(monthCell(m.Cells[i], s))
		}
		rows = append(rows, row.String())
	}

	grid := strings.Join(rows, "\n")
	agenda := []string{"", s.Header.Render(m.Selected.Format("Monday, January 2"))}
	if len(m.SelectedEvents) == 0 {
		agenda = append(agenda, s.Dim.Render("No events"))
	}
	for _, e := range m.SelectedEvents {
		agenda = append(agenda, eventLine(e, false, s, width))
	}
	return grid + "\n" + strings.Join(agenda, "\n")
}

func monthCell(c calendar.Cell, s Styles) string {
	mark := " "
	if len(c.Events) > 0 {
		mark = "•"
	}
	text := fmt.Sprintf("%2d%s", c.Date.Day(), mark)

	style := s.Normal
	switch {
	case c.Selected:
		style = s.Selected
	case c.Today:
		style = s.Today
	case c.OtherMonth:
		style = s.Dim
	}
	return style.Render(text) + strings.Repeat(" ", cellWidth-lipgloss.Width(text))
}
