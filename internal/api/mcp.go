package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/extract"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Events    EventStore
	Extractor *extract.Extractor
	Now       func() time.Time
}

func (d MCPDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewMCPServer creates an MCP server exposing the calendar to assistants.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"chatcal",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("chatcal: events extracted from chat, viewable by day, week or month."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_events",
			mcp.WithDescription("List stored calendar events, optionally only those on one date."),
			mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD")),
		),
		mcpListEvents(deps),
	)

	s.AddTool(
		mcp.NewTool("add_event_from_reply",
			mcp.WithDescription("Extract an event from an assistant reply containing {\"Event\",\"Time\",\"Priority\",\"Date\"} JSON and store it."),
			mcp.WithString("reply", mcp.Description("Assistant reply text"), mcp.Required()),
		),
		mcpAddEventFromReply(deps),
	)

	s.AddTool(
		mcp.NewTool("calendar_view",
			mcp.WithDescription("Render the day, week or month projection around a date."),
			mcp.WithString("mode", mcp.Description("day, week or month"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Cursor date as YYYY-MM-DD (default today)")),
		),
		mcpCalendarView(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"calendar://events",
			"Calendar Events",
			mcp.WithResourceDescription("All stored events as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceEvents(deps),
	)

	return s
}

func mcpListEvents(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		events := deps.Events.Load(ctx)

		if s := req.GetString("date", ""); s != "" {
			day, err := event.ParseDate(s)
			if err != nil {
				return mcpError("date must be YYYY-MM-DD"), nil
			}
			events = calendar.SortByTime(calendar.EventsOn(events, day))
		}

		b, err := json.Marshal(events)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal events: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddEventFromReply(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reply, err := req.RequireString("reply")
		if err != nil {
			return mcpError("reply is required"), nil
		}

		ev, ok := deps.Extractor.Extract(reply)
		if !ok {
			return mcpError("no event found in reply"), nil
		}
		if _, err := deps.Events.AppendAll(ctx, []event.CalendarEvent{ev}); err != nil {
			return mcpError(fmt.Sprintf("failed to save event: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Added event %s: %s on %s at %s", ev.ID, ev.Event, ev.Date, ev.Time)), nil
	}
}

func mcpCalendarView(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		modeStr, err := req.RequireString("mode")
		if err != nil {
			return mcpError("mode is required"), nil
		}
		mode, err := calendar.ParseMode(modeStr)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		now := deps.now()
		nav := calendar.NewNavigator(now)
		nav.SetMode(mode)
		if s := req.GetString("date", ""); s != "" {
			d, err := event.ParseDate(s)
			if err != nil {
				return mcpError("date must be YYYY-MM-DD"), nil
			}
			nav.Goto(d)
			nav.Select(d)
		}

		b, err := json.Marshal(nav.Render(deps.Events.Load(ctx), now))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal view: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceEvents(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Events.Load(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal events: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
