package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/config"
	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/storage"
	"github.com/kalambet/chatcal/internal/ui"
)

var calendarCmd = &cobra.Command{
	Use:     "calendar",
	Aliases: []string{"cal"},
	Short:   "Browse saved events by day, week or month",
	Long: `Browse saved events by day, week or month.

The interactive view refreshes when a chat session or the server saves new
events. Use --print for a one-shot rendering.

Examples:
  chatcal calendar
  chatcal calendar --mode month --date 2024-06-01
  chatcal calendar --print --mode week`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modeFlag, _ := cmd.Flags().GetString("mode")
		dateFlag, _ := cmd.Flags().GetString("date")
		printOnce, _ := cmd.Flags().GetBool("print")
		width, _ := cmd.Flags().GetInt("width")

		mode, err := calendar.ParseMode(modeFlag)
		if err != nil {
			return err
		}
		var date time.Time
		if dateFlag != "" {
			if date, err = event.ParseDate(dateFlag); err != nil {
				return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", dateFlag)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()
		events := storage.NewEventStore(store)

		styles := ui.DefaultStyles()
		if noColor {
			styles = ui.PlainStyles()
		}

		if printOnce {
			now := time.Now()
			nav := positionNavigator(calendar.NewNavigator(now), mode, date)
			view := nav.Render(events.Load(cmd.Context()), now)
			fmt.Println(ui.RenderView(view, nav.Title(), now, styles, width))
			return nil
		}

		model := ui.NewModel(events.Load, time.Now, styles)
		positionNavigator(model.Navigator(), mode, date)

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

		cancel := events.Subscribe(func(all []event.CalendarEvent) {
			p.Send(ui.EventsMsg{Events: all})
		})
		defer cancel()

		// Chat sessions in other processes write the same database file.
		w, err := storage.NewWatcher(cfg.Storage.DataDir, func() { p.Send(ui.ReloadMsg{}) })
		if err != nil {
			slog.Warn("watching data directory, live refresh disabled", "error", err)
		} else {
			defer w.Close()
		}

		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "calendar: %v\n", err)
			return err
		}
		return nil
	},
}

func init() {
	calendarCmd.Flags().String("mode", "day", "initial view: day, week or month")
	calendarCmd.Flags().String("date", "", "initial date (YYYY-MM-DD, default today)")
	calendarCmd.Flags().Bool("print", false, "print the view once instead of starting the interactive calendar")
	calendarCmd.Flags().Int("width", 80, "width of the printed view")
}

func positionNavigator(nav *calendar.Navigator, mode calendar.Mode, date time.Time) *calendar.Navigator {
	nav.SetMode(mode)
	if !date.IsZero() {
		nav.Goto(date)
		nav.Select(date)
	}
	return nav
}
