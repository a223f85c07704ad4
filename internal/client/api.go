package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnobuddy/backend/internal/model/chat"
	"github.com/diagnobuddy/backend/internal/service/ai"
	"github.com/diagnobuddy/backend/pkg/apperror"
)

const sessionHeader = "X-Session-Id"

// APIClient talks to the relay's session and chat endpoints.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures an APIClient.
type Option func(*APIClient)

// WithHTTPClient replaces the default client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *APIClient) {
		c.httpClient = httpClient
	}
}

// NewAPIClient targets the server at baseURL, e.g. http://localhost:8080.
func NewAPIClient(baseURL string, opts ...Option) (*APIClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: base URL must not be empty")
	}
	c := &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server root the client was built with.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

type chatRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresAt int64  `json:"expiresAt"`
}

type chatResponse struct {
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// IssueToken asks the server for a new session token.
func (c *APIClient) IssueToken(ctx context.Context, email, message string) (chat.SessionToken, error) {
	body, err := c.post(ctx, "/api/session", "", chatRequest{Email: email, Message: message})
	if err != nil {
		return chat.SessionToken{}, err
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return chat.SessionToken{}, apperror.Network("could not read session response", err)
	}
	if resp.SessionID == "" {
		return chat.SessionToken{}, apperror.Session("server issued an empty session", nil)
	}
	return chat.SessionToken{Token: resp.SessionID, ExpiresAt: time.UnixMilli(resp.ExpiresAt)}, nil
}

// SendChat relays one message under token and returns the decoded reply.
func (c *APIClient) SendChat(ctx context.Context, token, email, message string) (chat.Completion, error) {
	body, err := c.post(ctx, "/api/chat", token, chatRequest{Email: email, Message: message})
	if err != nil {
		return chat.Completion{}, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return chat.Completion{}, apperror.Network("could not read chat response", err)
	}
	completion, err := ai.DecodeCompletion(resp.Data)
	if err != nil {
		return chat.Completion{}, apperror.Upstream("reply carried no AI_out", err)
	}
	return completion, nil
}

// post sends payload as JSON. Non-2xx answers become NetworkError, except 401
// which is a SessionError.
func (c *APIClient) post(ctx context.Context, path, token string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Network("request failed", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, apperror.Network("read response body", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		statusErr := &ai.HTTPStatusError{StatusCode: res.StatusCode, URL: c.baseURL + path, Body: string(body)}
		if res.StatusCode == http.StatusUnauthorized {
			return nil, apperror.Session(errorMessage(body, "session rejected"), statusErr)
		}
		return nil, apperror.Network(errorMessage(body, "unexpected status"), statusErr)
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} from an error body.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}
