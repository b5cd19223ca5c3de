// Package transcribe uploads recorded audio to a chatcal server and decides
// whether the recognised text is worth sending to the assistant.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 120 * time.Second

const retryHint = "Try again, long press to record"

// Outcome classifies a transcription by how much speech it holds.
type Outcome int

const (
	NoSpeech Outcome = iota
	Insufficient
	Speech
)

func (o Outcome) String() string {
	switch o {
	case NoSpeech:
		return "no speech"
	case Insufficient:
		return "insufficient"
	case Speech:
		return "speech"
	}
	return "unknown"
}

// Prompt returns the title and hint shown for outcomes that are not sent.
// Speech returns empty strings.
func (o Outcome) Prompt() (title, hint string) {
	switch o {
	case NoSpeech:
		return "No Speech Detected", retryHint
	case Insufficient:
		return "Insufficient Speech", retryHint
	}
	return "", ""
}

// Classify counts whitespace-separated words: none is NoSpeech, one is
// Insufficient, two or more is Speech.
func Classify(text string) Outcome {
	switch n := len(strings.Fields(text)); {
	case n == 0:
		return NoSpeech
	case n == 1:
		return Insufficient
	default:
		return Speech
	}
}

// Result is a finished transcription.
type Result struct {
	Text    string
	Outcome Outcome
}

// Bridge talks to a chatcal server's /api/transcribe endpoint.
type Bridge struct {
	baseURL    string
	httpClient *http.Client
}

// NewBridge creates a bridge for the server at baseURL.
func NewBridge(baseURL string) *Bridge {
	return &Bridge{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Transcribe uploads audio as the multipart field "file" and classifies the
// returned text.
func (b *Bridge) Transcribe(ctx context.Context, filename string, audio io.Reader) (Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return Result{}, fmt.Errorf("reading audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/transcribe", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("server not reachable (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("transcription failed: %d %s - %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decoding transcription: %w", err)
	}

	text := strings.TrimSpace(out.Text)
	return Result{Text: text, Outcome: Classify(text)}, nil
}

// Sender is the subset of session.Session used to forward speech.
type Sender interface {
	Send(ctx context.Context, raw string) error
}

// Forward sends r's text through s when it holds real speech and reports
// whether it did.
func Forward(ctx context.Context, s Sender, r Result) (bool, error) {
	if r.Outcome != Speech {
		return false, nil
	}
	if err := s.Send(ctx, r.Text); err != nil {
		return true, err
	}
	return true, nil
}
