// Package proxy is a small client for an OpenAI-compatible provider: chat
// completions and audio transcription.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL         = "https://api.openai.com/v1"
	DefaultChatModel       = "gpt-4o-mini"
	DefaultTranscribeModel = "whisper-1"

	defaultTimeout   = 60 * time.Second
	streamingTimeout = 300 * time.Second
	maxRetries       = 3
	initialBackoff   = 500 * time.Millisecond
)

// ErrNoAPIKey is returned when the client was built without a key.
var ErrNoAPIKey = errors.New("API key not configured")

// UpstreamError is a non-2xx provider response, kept verbatim so callers
// can relay it.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Client communicates with the provider API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the default provider.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
// An empty baseURL keeps the default.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool { return c.apiKey != "" }

// Chat sends a chat completion request and returns the response body. A
// streaming request yields SSE events, anything else the complete JSON
// response. The caller closes the body.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if !c.HasKey() {
		return nil, ErrNoAPIKey
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	timeout := defaultTimeout
	if req.Stream {
		timeout = streamingTimeout
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, initialBackoff<<(attempt-1)); err != nil {
				return nil, err
			}
		}
		rc, err := c.post(ctx, "/chat/completions", "application/json", payload, timeout)
		if !isRateLimit(err) {
			return rc, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func isRateLimit(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusTooManyRequests
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// post sends payload to path under the client's base URL. Non-2xx replies
// become *UpstreamError; a 2xx body releases its timeout when closed.
func (c *Client) post(ctx context.Context, path, contentType string, payload []byte, timeout time.Duration) (io.ReadCloser, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}

	if resp.StatusCode/100 != 2 {
		defer cancel()
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(msg)}
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// Transcribe uploads audio to the provider's transcription endpoint and
// returns the raw JSON result.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader, model string) ([]byte, error) {
	if !c.HasKey() {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultTranscribeModel
	}

	form, contentType, err := audioForm(filename, audio, model)
	if err != nil {
		return nil, err
	}
	rc, err := c.post(ctx, "/audio/transcriptions", contentType, form, streamingTimeout)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	result, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading transcription: %w", err)
	}
	return result, nil
}

// audioForm builds the multipart body the transcription endpoint expects.
func audioForm(filename string, audio io.Reader, model string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", fmt.Errorf("copying audio: %w", err)
	}
	for name, value := range map[string]string{"model": model, "response_format": "json"} {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("writing %s field: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
