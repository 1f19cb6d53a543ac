package setuser

import "fmt"

// SessionState is the server's view of one session: who it is right now
// and what statement logging is in effect.
type SessionState struct {
	Session      string `json:"session"`
	User         string `json:"user"`
	Superuser    bool   `json:"superuser"`
	Switched     bool   `json:"switched"`
	LogStatement string `json:"log_statement"`
}

// Result is the outcome of a statement that ran to completion.
type Result struct {
	Tag string `json:"tag"`
}

// Policy is the server's current enforcement posture.
type Policy struct {
	BlockAlterSystem bool   `json:"block_alter_system"`
	BlockCopyProgram bool   `json:"block_copy_program"`
	LogStatement     string `json:"log_statement"`
}

// APIError is a structured refusal from the server: guard errors, unknown
// sessions, malformed requests.
type APIError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Reason string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Reason
}

// BlockedError is returned when policy refuses a statement during an
// impersonation window.
type BlockedError struct {
	Class  string `json:"class"`
	Reason string `json:"reason"`
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("setuser blocked (%s): %s", e.Class, e.Reason)
}
