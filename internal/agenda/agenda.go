// Package agenda logs the day's events on a cron schedule.
package agenda

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/event"
)

// DefaultSchedule runs every morning at 07:00 local time.
const DefaultSchedule = "0 7 * * *"

// Source loads the current events.
type Source interface {
	Load(ctx context.Context) []event.CalendarEvent
}

// Scheduler emits a digest of today's events on every tick of its schedule.
type Scheduler struct {
	source Source
	logger *slog.Logger
	now    func() time.Time
	cron   *cron.Cron
}

// New validates schedule (standard five-field cron syntax) and returns a
// scheduler that has not been started.
func New(source Source, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parsing agenda schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		source: source,
		logger: logger,
		now:    time.Now,
		cron:   cron.New(cron.WithLocation(time.Local)),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Emit(context.Background()) }); err != nil {
		return nil, fmt.Errorf("scheduling agenda: %w", err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running digest to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// Digest renders the day's events as one line per event, earliest first.
func Digest(events []event.CalendarEvent, now time.Time) string {
	day := calendar.Day(events, now, now)
	if len(day.Events) == 0 {
		return "no events today"
	}
	lines := make([]string, 0, len(day.Events))
	for _, e := range day.Events {
		mark := " "
		if day.Nearest != nil && e.ID == day.Nearest.ID {
			mark = ">"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s [%s]", mark, e.Time, e.Event, e.Priority))
	}
	return strings.Join(lines, "\n")
}

// Emit logs today's agenda once and returns the digest.
func (s *Scheduler) Emit(ctx context.Context) string {
	now := s.now()
	events := s.source.Load(ctx)
	today := calendar.EventsOn(events, now)
	digest := Digest(events, now)
	s.logger.Info("agenda", "date", event.FormatDate(now), "events", len(today))
	for _, line := range strings.Split(digest, "\n") {
		s.logger.Info("agenda entry", "line", strings.TrimSpace(line))
	}
	return digest
}
