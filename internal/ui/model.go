package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/event"
)

// Loader reads the current event list.
type Loader func(ctx context.Context) []event.CalendarEvent

// EventsMsg replaces the model's events, e.g. from an EventStore subscriber.
type EventsMsg struct {
	Events []event.CalendarEvent
}

// ReloadMsg asks the model to re-read events through its Loader, e.g. when
// the database file changed on disk.
type ReloadMsg struct{}

type tickMsg time.Time

type messageTimeoutMsg struct{}

const helpText = "d/w/m view  h/l prev/next  j/k select day  t today  r reload  q quit"

type Model struct {
	nav    *calendar.Navigator
	load   Loader
	now    func() time.Time
	events []event.CalendarEvent
	styles Styles

	width   int
	height  int
	message string
}

// NewModel starts on today's day view.
func NewModel(load Loader, now func() time.Time, styles Styles) *Model {
	if now == nil {
		now = time.Now
	}
	return &Model{
		nav:    calendar.NewNavigator(now()),
		load:   load,
		now:    now,
		styles: styles,
		width:  80,
	}
}

// Navigator exposes the cursor state.
func (m *Model) Navigator() *calendar.Navigator { return m.nav }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.reloadCmd(), tickCmd())
}

func (m *Model) reloadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		return EventsMsg{Events: load(context.Background())}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case EventsMsg:
		m.events = msg.Events
		return m, nil

	case ReloadMsg:
		return m, m.reloadCmd()

	case tickMsg:
		// Nearest-event marker depends on the wall clock.
		return m, tickCmd()

	case messageTimeoutMsg:
		m.message = ""
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "d":
		m.nav.SetMode(calendar.ModeDay)
	case "w":
		m.nav.SetMode(calendar.ModeWeek)
	case "m":
		m.nav.SetMode(calendar.ModeMonth)
	case "h", "left":
		m.nav.Prev()
	case "l", "right":
		m.nav.Next()
	case "t":
		m.nav.Today(m.now())
	case "j", "down":
		m.moveSelection(1)
	case "k", "up":
		m.moveSelection(-1)
	case "r":
		return m, tea.Batch(m.reloadCmd(), m.flash("Reloaded"))
	}
	return m, nil
}

// moveSelection shifts the month view's selected date, following it into
// the neighbouring month when it leaves the grid's month.
func (m *Model) moveSelection(days int) {
	if m.nav.Mode != calendar.ModeMonth {
		return
	}
	sel := m.nav.Selected.AddDate(0, 0, days)
	m.nav.Select(sel)
	if sel.Month() != m.nav.Month.Month() || sel.Year() != m.nav.Month.Year() {
		m.nav.Month = time.Date(sel.Year(), sel.Month(), 1, 0, 0, 0, 0, sel.Location())
	}
}

func (m *Model) flash(text string) tea.Cmd {
	m.message = text
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg { return messageTimeoutMsg{} })
}

func (m *Model) View() string {
	now := m.now()
	view := m.nav.Render(m.events, now)
	body := RenderView(view, m.nav.Title(), now, m.styles, m.width-4)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.modeBar(),
		m.styles.Border.Render(body),
		m.statusBar(),
	)
}

func (m *Model) modeBar() string {
	tabs := make([]string, 0, 3)
	for _, mode := range []calendar.Mode{calendar.ModeDay, calendar.ModeWeek, calendar.ModeMonth} {
		label := strings.ToUpper(mode.String()[:1]) + mode.String()[1:]
		if mode == m.nav.Mode {
			tabs = append(tabs, m.styles.ActiveMode.Render(label))
		} else {
			tabs = append(tabs, m.styles.Help.Render(" "+label+" "))
		}
	}
	return strings.Join(tabs, " ")
}

func (m *Model) statusBar() string {
	if m.message != "" {
		return m.styles.Message.Render(m.message)
	}
	return m.styles.Help.Render(helpText)
}
