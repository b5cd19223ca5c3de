package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTransportTimeout = 120 * time.Second

// StatusError is a non-2xx answer from the chat endpoint, carrying the
// upstream status and body unchanged.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned %d: %s", e.Code, e.Body)
}

// ChatRequest is the body accepted by the server's /api/chat endpoint.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

// HTTPTransport talks to a chatcal server's /api/chat endpoint.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for the server at baseURL.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTransportTimeout},
	}
}

// Complete sends history and decodes the assistant turn.
func (t *HTTPTransport) Complete(ctx context.Context, history []Message) (Message, error) {
	body, err := json.Marshal(ChatRequest{Messages: history})
	if err != nil {
		return Message{}, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Message{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("server not reachable (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return Message{}, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("decoding reply: %w", err)
	}
	return msg, nil
}
