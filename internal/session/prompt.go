package session

import (
	"fmt"
	"time"

	"github.com/kalambet/chatcal/internal/event"
)

// EventAddedText replaces an assistant reply that produced an event.
const EventAddedText = "Event added! Please check your calendar."

const promptTemplate = `Please analyze this message. If it contains event information (meetings, appointments, tasks with time), respond with JSON format: {"Event": "event name", "Time": "HH:MM format", "Priority": "low", "Date": "YYYY-MM-DD format"}. For dates, use today's date (%s) unless specifically mentioned otherwise. If it's not an event, respond normally as a chat assistant. Original message: %s`

// BuildPrompt wraps a raw user utterance in the event-detection
// instructions, using today's local date as the default for relative dates.
func BuildPrompt(raw string, today time.Time) string {
	return fmt.Sprintf(promptTemplate, event.FormatDate(today), raw)
}
