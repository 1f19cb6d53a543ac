package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crunchyericford/set-user/internal/model"
)

// Client talks to a running set-user control API server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at addr. A bare host:port gets an
// http scheme prepended.
func New(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Reason string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Reason
}

// BlockedError is a policy rejection of a submitted statement.
type BlockedError struct {
	Class  string `json:"class"`
	Reason string `json:"reason"`
}

func (e *BlockedError) Error() string {
	return e.Reason
}

// Policy is the server's current enforcement configuration.
type Policy struct {
	BlockAlterSystem bool   `json:"block_alter_system"`
	BlockCopyProgram bool   `json:"block_copy_program"`
	LogStatement     string `json:"log_statement"`
}

// OpenSession creates a session on the server acting as user.
func (c *Client) OpenSession(user string) (model.SessionState, error) {
	var state model.SessionState
	err := c.do(http.MethodPost, "/v1/sessions", map[string]string{"user": user}, &state)
	return state, err
}

// Status fetches the current state of a session.
func (c *Client) Status(id string) (model.SessionState, error) {
	var state model.SessionState
	err := c.do(http.MethodGet, "/v1/sessions/"+id, nil, &state)
	return state, err
}

// Call invokes the session's switch callable with the given arguments.
// Argument values may be nil; the server routes on the shape.
func (c *Client) Call(id string, args []*string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.do(http.MethodPost, "/v1/sessions/"+id+"/call", map[string]any{"args": args}, &out)
	return out.Status, err
}

// SetUser switches the session to the named principal.
func (c *Client) SetUser(id, target string) (string, error) {
	return c.Call(id, []*string{&target})
}

// Reset restores the session's original identity.
func (c *Client) Reset(id string) (string, error) {
	return c.Call(id, nil)
}

// Exec submits one statement through the session's pipeline.
func (c *Client) Exec(id, text string) (model.Result, error) {
	var res model.Result
	err := c.do(http.MethodPost, "/v1/sessions/"+id+"/statements", map[string]string{"text": text}, &res)
	return res, err
}

// CloseSession closes a session, resetting any open impersonation window.
func (c *Client) CloseSession(id string) (model.SessionState, error) {
	var state model.SessionState
	err := c.do(http.MethodDelete, "/v1/sessions/"+id, nil, &state)
	return state, err
}

// Policy fetches the server's live policy toggles.
func (c *Client) Policy() (Policy, error) {
	var p Policy
	err := c.do(http.MethodGet, "/v1/policy", nil, &p)
	return p, err
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("set-user server unreachable: %w", err)
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
		return fmt.Errorf("server returned status %d", resp.StatusCode)
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
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
