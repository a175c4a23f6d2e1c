package client

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

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 30 * time.Second

// Client talks to a Supabase-compatible backend: the auth API under
// /auth/v1 and the PostgREST data API under /rest/v1.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// New creates a new API client. apiKey is the project's public (anon) key.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates as the holder of
// accessToken. An empty token falls back to the anon key.
func (c *Client) WithToken(accessToken string) *Client {
	cp := *c
	cp.token = accessToken
	return &cp
}

// BaseURL returns the backend URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, nil, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, header http.Header, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	bearer := c.token
	if bearer == "" {
		bearer = c.apiKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return parseErrorBody(resp.StatusCode, respBody)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// apiError covers the error shapes of both APIs: GoTrue reports msg
// (or error/error_description on the token endpoint) and PostgREST
// reports message with a SQLSTATE code.
type apiError struct {
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	ErrorCode        string          `json:"error_code"`
	Code             json.RawMessage `json:"code"`
}

func parseErrorBody(status int, body []byte) *HTTPError {
	var e apiError
	if json.Unmarshal(body, &e) != nil {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &HTTPError{StatusCode: status, Message: msg}
	}
	code := e.ErrorCode
	if code == "" && len(e.Code) > 0 {
		var s string
		if json.Unmarshal(e.Code, &s) == nil {
			code = s
		}
	}
	var msg string
	switch {
	case e.Msg != "":
		msg = e.Msg
	case e.Message != "":
		msg = e.Message
	case e.ErrorDescription != "":
		msg = e.ErrorDescription
	case e.Error != "":
		msg = e.Error
	default:
		msg = strings.TrimSpace(string(body))
	}
	return &HTTPError{StatusCode: status, Code: code, Message: msg}
}
