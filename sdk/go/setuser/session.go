package setuser

import (
	"context"
	"net/http"
)

// Session is a handle to one server-side impersonation session.
type Session struct {
	client *Client
	id     string
}

// ID returns the server-assigned session identifier.
func (s *Session) ID() string {
	return s.id
}

// Call invokes the switch entry point with raw arguments. One non-nil
// argument switches to that principal, zero arguments or a single nil
// resets, anything else is refused by the server.
func (s *Session) Call(ctx context.Context, args []*string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := s.client.do(ctx, http.MethodPost, "/v1/sessions/"+s.id+"/call", map[string]any{"args": args}, &out)
	return out.Status, err
}

// SetUser switches the session to the target principal. Returns "OK" on
// success. Fails if a switch is already active or the target is unknown.
func (s *Session) SetUser(ctx context.Context, target string) (string, error) {
	return s.Call(ctx, []*string{&target})
}

// Reset restores the session's original identity and log level. Returns
// "OK" on success. Fails if no switch is active.
func (s *Session) Reset(ctx context.Context) (string, error) {
	return s.Call(ctx, nil)
}

// Exec runs a statement through the session's enforcement pipeline.
// Statements refused during an impersonation window return *BlockedError.
func (s *Session) Exec(ctx context.Context, text string) (Result, error) {
	var res Result
	err := s.client.do(ctx, http.MethodPost, "/v1/sessions/"+s.id+"/statements", map[string]string{"text": text}, &res)
	return res, err
}

// Status fetches the session's current identity and log level.
func (s *Session) Status(ctx context.Context) (SessionState, error) {
	var state SessionState
	err := s.client.do(ctx, http.MethodGet, "/v1/sessions/"+s.id, nil, &state)
	return state, err
}

// Close ends the session, resetting any active switch first, and returns
// the final state.
func (s *Session) Close(ctx context.Context) (SessionState, error) {
	var state SessionState
	err := s.client.do(ctx, http.MethodDelete, "/v1/sessions/"+s.id, nil, &state)
	return state, err
}
