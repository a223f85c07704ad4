package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diagnobuddy/backend/internal/model/chat"
)

// Request is the input for one completion.
type Request struct {
	Email   string
	Message string
	History []chat.HistoryEntry
}

// Completer produces a reply for a user message.
type Completer interface {
	Complete(ctx context.Context, req Request) (chat.Completion, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("completion: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ErrMalformedPayload is returned when the upstream body carries no usable AI_out.
var ErrMalformedPayload = errors.New("completion: malformed payload")

// HTTPCompleter calls the hosted model, which takes the user message as the
// user_input query parameter of a POST and answers {"AI_out": "..."}.
type HTTPCompleter struct {
	endpoint   string
	httpClient *http.Client
}

type HTTPOption func(*HTTPCompleter)

func WithHTTPClient(httpClient *http.Client) HTTPOption {
	return func(c *HTTPCompleter) {
		c.httpClient = httpClient
	}
}

// NewHTTPCompleter validates endpoint and returns a completer with the given timeout.
func NewHTTPCompleter(endpoint string, timeout time.Duration, opts ...HTTPOption) (*HTTPCompleter, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("completion: endpoint must not be empty")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("completion: invalid endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &HTTPCompleter{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete posts the message and decodes the AI_out reply.
func (c *HTTPCompleter) Complete(ctx context.Context, req Request) (chat.Completion, error) {
	target, err := c.requestURL(req.Message)
	if err != nil {
		return chat.Completion{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		return chat.Completion{}, fmt.Errorf("completion: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return chat.Completion{}, fmt.Errorf("completion: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return chat.Completion{}, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        c.endpoint,
			Body:       string(buf),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return chat.Completion{}, fmt.Errorf("completion: read response body: %w", err)
	}

	completion, err := DecodeCompletion(raw)
	if err != nil {
		return chat.Completion{}, err
	}

	log.Printf("[ai] hosted completion ok, length=%d", len(completion.AIOut))
	return completion, nil
}

func (c *HTTPCompleter) requestURL(message string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("completion: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("user_input", message)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DecodeCompletion extracts AI_out from an upstream body and keeps the body
// itself as the raw payload.
func DecodeCompletion(raw []byte) (chat.Completion, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &fields); err != nil {
		return chat.Completion{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	field, ok := fields["AI_out"]
	if !ok {
		return chat.Completion{}, fmt.Errorf("%w: missing AI_out", ErrMalformedPayload)
	}

	var out *string
	if err := json.Unmarshal(field, &out); err != nil {
		return chat.Completion{}, fmt.Errorf("%w: AI_out is not a string", ErrMalformedPayload)
	}
	if out == nil {
		return chat.Completion{}, fmt.Errorf("%w: AI_out is null", ErrMalformedPayload)
	}

	return chat.Completion{AIOut: *out, Raw: append(json.RawMessage(nil), raw...)}, nil
}
