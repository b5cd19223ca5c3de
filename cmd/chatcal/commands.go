package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/chatcal/internal/api"
	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/config"
	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/extract"
	"github.com/kalambet/chatcal/internal/ics"
	"github.com/kalambet/chatcal/internal/storage"
)

// eventSource is the event list either on this device or behind a server.
type eventSource interface {
	list(ctx context.Context, date string) ([]event.CalendarEvent, error)
	remove(ctx context.Context, id string) error
}

type localEvents struct {
	store *storage.EventStore
}

func (l localEvents) list(ctx context.Context, date string) ([]event.CalendarEvent, error) {
	events := l.store.Load(ctx)
	if date == "" {
		return events, nil
	}
	day, err := event.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return calendar.SortByTime(calendar.EventsOn(events, day)), nil
}

func (l localEvents) remove(ctx context.Context, id string) error {
	found, err := l.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("event %s not found", id)
	}
	return nil
}

type remoteEvents struct {
	client *apiClient
}

func (r remoteEvents) list(ctx context.Context, date string) ([]event.CalendarEvent, error) {
	path := "/events"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var events []event.CalendarEvent
	if err := r.client.call(ctx, http.MethodGet, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r remoteEvents) remove(ctx context.Context, id string) error {
	return r.client.call(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), nil)
}

// withEvents runs fn against the local store, or the server's API when
// --server is set.
func withEvents(cmd *cobra.Command, fn func(eventSource) error) error {
	remote, _ := cmd.Flags().GetBool("server")
	if remote {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return fn(remoteEvents{client: client})
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	return fn(localEvents{store: storage.NewEventStore(store)})
}

// --- events ---

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List, delete or export saved events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved events",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		asJSON, _ := cmd.Flags().GetBool("json")

		return withEvents(cmd, func(src eventSource) error {
			events, err := src.list(cmd.Context(), date)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}
			printEvents(os.Stdout, events)
			return nil
		})
	},
}

var eventsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEvents(cmd, func(src eventSource) error {
			if err := src.remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Deleted event %s", args[0])
			return nil
		})
	},
}

var eventsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved events as JSON or iCalendar",
	Long: `Export saved events as JSON or iCalendar.

Examples:
  chatcal events export --format ics --output chatcal.ics
  chatcal events export --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if format != "json" && format != "ics" {
			return fmt.Errorf("unknown format %q (want json or ics)", format)
		}

		return withEvents(cmd, func(src eventSource) error {
			events, err := src.list(cmd.Context(), "")
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := writeExport(w, format, events, time.Now()); err != nil {
				return err
			}
			if output != "" {
				printSuccess("Exported %d events to %s", len(events), output)
			}
			return nil
		})
	},
}

var eventsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved event on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL saved events. Use --confirm to proceed.")
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		n, err := storage.NewEventStore(store).Clear(cmd.Context())
		if err != nil {
			return err
		}
		printSuccess("Deleted %d events", n)
		return nil
	},
}

func init() {
	eventsCmd.PersistentFlags().Bool("server", false, "use the running server's event API instead of the local database")
	eventsListCmd.Flags().String("date", "", "only events on this date (YYYY-MM-DD)")
	eventsListCmd.Flags().Bool("json", false, "print events as JSON")
	eventsExportCmd.Flags().String("format", "ics", "export format: json or ics")
	eventsExportCmd.Flags().String("output", "", "output file path (default: stdout)")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsDeleteCmd)
	eventsCmd.AddCommand(eventsExportCmd)
	eventsClearCmd.Flags().Bool("confirm", false, "confirm deleting all events")
	eventsCmd.AddCommand(eventsClearCmd)
}

func printEvents(w io.Writer, events []event.CalendarEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "%s  %-5s  %s  %s  %s\n",
			e.Date,
			e.Time,
			colorize(priorityColor(e.Priority), fmt.Sprintf("%-6s", e.Priority)),
			e.Event,
			colorize(stepColor, e.ID),
		)
	}
}

func writeExport(w io.Writer, format string, events []event.CalendarEvent, now time.Time) error {
	if format == "ics" {
		return ics.Write(w, events, now)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the calendar to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Events:    storage.NewEventStore(store),
			Extractor: extract.NewExtractor(extract.WithStrict(cfg.Extract.Strict)),
		}, version)

		return server.NewStdioServer(mcpSrv).Listen(cmd.Context(), os.Stdin, os.Stdout)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Printf("  %s\n", colorize(stepColor, config.Path()))
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(boldColor, k.Key), k.Value)
		}
		key := "not set"
		if cfg.Provider.APIKey != "" {
			key = "set"
		}
		fmt.Printf("  %s = %s\n", colorize(boldColor, "provider.api_key"), key)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetAPIKeyCmd = &cobra.Command{
	Use:   "set-api-key <key>",
	Short: "Store the provider API key in the secrets file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0]); err != nil {
			return err
		}
		printSuccess("API key saved")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetAPIKeyCmd)
}
