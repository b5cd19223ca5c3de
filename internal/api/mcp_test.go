package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/chatcal/internal/calendar"
	"github.com/kalambet/chatcal/internal/event"
	"github.com/kalambet/chatcal/internal/extract"
	"github.com/kalambet/chatcal/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.EventStore) {
	t.Helper()
	es := newTestEventStore(t, seedEvents()...)
	clock := func() time.Time { return fixedNow }
	return MCPDeps{
		Events:    es,
		Extractor: extract.NewExtractor(extract.WithClock(clock)),
		Now:       clock,
	}, es
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_ListEvents(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpListEvents(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_events", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var all []event.CalendarEvent
	if err := json.Unmarshal([]byte(toolText(t, result)), &all); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 events, got %d", len(all))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("list_events", map[string]interface{}{
		"date": "2024-06-07",
	}))
	var day []event.CalendarEvent
	json.Unmarshal([]byte(toolText(t, result)), &day)
	if len(day) != 1 || day[0].ID != "e3" {
		t.Errorf("events on 2024-06-07 = %+v", day)
	}
}

func TestMCPTool_ListEvents_BadDate(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpListEvents(deps)(context.Background(), makeCallToolRequest("list_events", map[string]interface{}{
		"date": "June 7",
	}))
	if !result.IsError {
		t.Error("expected error for malformed date")
	}
}

func TestMCPTool_AddEventFromReply(t *testing.T) {
	deps, es := newTestMCPDeps(t)
	handler := mcpAddEventFromReply(deps)

	req := makeCallToolRequest("add_event_from_reply", map[string]interface{}{
		"reply": `Sure! {"Event":"Dentist appointment","Time":"15:00","Priority":"Medium","Date":"2024-06-06"}`,
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "Dentist appointment") {
		t.Errorf("response = %s", toolText(t, result))
	}

	events := es.Load(context.Background())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	added := events[3]
	if added.Priority != event.PriorityMedium || added.Date != "2024-06-06" || added.ID == "" {
		t.Errorf("added event = %+v", added)
	}
}

func TestMCPTool_AddEventFromReply_NoEvent(t *testing.T) {
	deps, es := newTestMCPDeps(t)
	result, err := mcpAddEventFromReply(deps)(context.Background(), makeCallToolRequest("add_event_from_reply", map[string]interface{}{
		"reply": "Hello! How can I help you today?",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for a reply without an event")
	}
	if n := len(es.Load(context.Background())); n != 3 {
		t.Errorf("events = %d, want 3", n)
	}
}

func TestMCPTool_AddEventFromReply_MissingArg(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpAddEventFromReply(deps)(context.Background(), makeCallToolRequest("add_event_from_reply", nil))
	if !result.IsError {
		t.Error("expected error when reply is missing")
	}
}

func TestMCPTool_CalendarView(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpCalendarView(deps)

	result, err := handler(context.Background(), makeCallToolRequest("calendar_view", map[string]interface{}{
		"mode": "day",
		"date": "2024-06-05",
	}))
	if err != nil || result.IsError {
		t.Fatalf("calendar_view failed: %v %s", err, toolText(t, result))
	}
	var view calendar.View
	if err := json.Unmarshal([]byte(toolText(t, result)), &view); err != nil {
		t.Fatal(err)
	}
	if view.Day == nil || len(view.Day.Events) != 2 {
		t.Fatalf("day view = %+v", view.Day)
	}
	// At noon the next event is lunch.
	if view.Day.Nearest == nil || view.Day.Nearest.ID != "e1" {
		t.Errorf("nearest = %+v", view.Day.Nearest)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("calendar_view", map[string]interface{}{
		"mode": "decade",
	}))
	if !result.IsError {
		t.Error("expected error for unknown mode")
	}
}

func TestMCPResource_Events(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	contents, err := mcpResourceEvents(deps)(context.Background(), makeReadResourceRequest("calendar://events"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "calendar://events" || tc.MIMEType != "application/json" {
		t.Errorf("contents = %+v", tc)
	}
	var events []event.CalendarEvent
	if err := json.Unmarshal([]byte(tc.Text), &events); err != nil || len(events) != 3 {
		t.Errorf("resource body = %s (%v)", tc.Text, err)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
