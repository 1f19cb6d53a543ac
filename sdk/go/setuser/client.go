package setuser

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

// Client talks to a set-user session server. Safe for concurrent use;
// each Session handle it returns is an independent server-side session.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{
		baseURL: "http://127.0.0.1:8093",
		timeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}

	base := cfg.baseURL
	if base == "" {
		return nil, fmt.Errorf("setuser: base URL must not be empty")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    hc,
	}, nil
}

// OpenSession opens a session as the given principal and returns a handle
// to it. The principal must exist in the server's directory.
func (c *Client) OpenSession(ctx context.Context, user string) (*Session, error) {
	var state SessionState
	err := c.do(ctx, http.MethodPost, "/v1/sessions", map[string]string{"user": user}, &state)
	if err != nil {
		return nil, err
	}
	return &Session{client: c, id: state.Session}, nil
}

// Policy fetches the server's current enforcement flags.
func (c *Client) Policy(ctx context.Context) (Policy, error) {
	var p Policy
	err := c.do(ctx, http.MethodGet, "/v1/policy", nil, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("setuser: server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("setuser: server returned status %d", resp.StatusCode)
	}

	// Statement rejections and API errors use distinct body keys.
	if resp.StatusCode == http.StatusForbidden {
		var blocked BlockedError
		if json.Unmarshal(data, &blocked) == nil && blocked.Reason != "" {
			return &blocked
		}
	}
	var apiErr APIError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Reason != "" {
		apiErr.Status = resp.StatusCode
		return &apiErr
	}
	return fmt.Errorf("setuser: server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
