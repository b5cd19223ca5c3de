package session

import "strings"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	PartText = "text"
)

// Part is one typed content fragment of a message. Only text parts carry
// meaning for event extraction.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// TextMessage builds a message with a single text part.
func TextMessage(id, role, text string) Message {
	return Message{ID: id, Role: role, Parts: []Part{{Type: PartText, Text: text}}}
}

// Text joins the text parts of m with single spaces.
func (m Message) Text() string {
	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}
