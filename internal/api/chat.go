package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kalambet/chatcal/internal/proxy"
	"github.com/kalambet/chatcal/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleChat converts the client's message list into provider messages and
// forwards it. Non-streaming replies come back as a single assistant
// session.Message; streaming replies are relayed as SSE unchanged.
func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.Proxy.HasKey() {
			httpError(w, http.StatusInternalServerError, "api_error", "API key not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}
		var req session.ChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}

		// Provider options the client adds (temperature, max_tokens, ...)
		// land in Extra and pass through. Model and messages are ours.
		var upstream proxy.ChatRequest
		if err := json.Unmarshal(body, &upstream); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		upstream.Model = deps.ChatModel
		upstream.Messages = toProviderMessages(req.Messages)
		upstream.Stream = req.Stream

		rc, err := deps.Proxy.Chat(r.Context(), upstream)
		if err != nil {
			relayUpstreamError(w, err)
			return
		}
		defer rc.Close()

		if req.Stream {
			streamResponse(w, rc)
			return
		}

		var resp proxy.ChatResponse
		if err := json.NewDecoder(rc).Decode(&resp); err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "reading upstream response: %v", err)
			return
		}
		id := resp.ID
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(session.TextMessage(id, session.RoleAssistant, resp.Content()))
	}
}

func toProviderMessages(msgs []session.Message) []proxy.ChatMessage {
	out := make([]proxy.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, proxy.ChatMessage{Role: m.Role, Content: m.Text()})
	}
	return out
}

// relayUpstreamError passes a provider status and body through unchanged.
// Anything else is a gateway failure.
func relayUpstreamError(w http.ResponseWriter, err error) {
	var ue *proxy.UpstreamError
	switch {
	case errors.As(err, &ue):
		slog.Warn("upstream error", "status", ue.Status)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ue.Status)
		io.WriteString(w, ue.Body)
	case errors.Is(err, proxy.ErrNoAPIKey):
		httpError(w, http.StatusInternalServerError, "api_error", "API key not configured")
	default:
		httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", err)
	}
}

// errorBody is the JSON shape of every API error, also sent as a final SSE
// event when a stream breaks.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func newErrorBody(errType, msg string) errorBody {
	var b errorBody
	b.Error.Message = msg
	b.Error.Type = errType
	return b
}

// streamResponse copies upstream SSE lines to w as they arrive.
func streamResponse(w http.ResponseWriter, rc io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	reader := bufio.NewReader(rc)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			w.Write(line)
			flusher.Flush()
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			slog.Error("relaying chat stream", "error", err)
			payload, _ := json.Marshal(newErrorBody("server_error", "upstream read error"))
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			return
		}
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(newErrorBody(errType, fmt.Sprintf(format, args...)))
}
