package guard

import (
	"context"
	"fmt"

	"github.com/crunchyericford/set-user/internal/audit"
	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/identity"
	"github.com/crunchyericford/set-user/internal/model"
	"github.com/crunchyericford/set-user/internal/session"
)

// OK is the canonical confirmation returned by successful switch calls.
const OK = "OK"

// Guard owns the identity-switch state machine. It validates, mutates the
// session's switch slot, forces audit verbosity for the window, and emits
// transition records. The guard itself is stateless; all switch state
// lives on the session.
type Guard struct {
	dir identity.Directory
	log *audit.Log
}

// New creates a guard resolving principals through dir and recording
// transitions to log. A nil log disables recording (tests).
func New(dir identity.Directory, log *audit.Log) *Guard {
	return &Guard{dir: dir, log: log}
}

// SwitchTo opens an impersonation window for the named principal.
//
// Order of operations:
//  1. Refuse if a window is already open.
//  2. Resolve the target; unknown names fail before anything changes.
//  3. Capture the caller's identity and current log_statement into the
//     switch slot, making the target active.
//  4. Force log_statement to "all" for the session.
//  5. Record the transition.
//
// A failure at any step leaves the session exactly as it was.
func (g *Guard) SwitchTo(ctx context.Context, sess *session.Session, target string) (string, error) {
	if sess.Switched() {
		return "", &AlreadySwitchedError{}
	}

	id, err := g.dir.Resolve(ctx, target)
	if err != nil {
		return "", err
	}

	source := sess.Active()
	saved := sess.Settings().Get(config.KeyLogStatement)
	st := session.SwitchState{Original: source, SavedLogStatement: saved}
	if !sess.Begin(st, id) {
		// Lost a race with another SwitchTo on the same session.
		return "", &AlreadySwitchedError{}
	}

	sess.Settings().Set(config.KeyLogStatement, string(model.LogAll), config.ScopeSession)
	g.record(audit.TypeSwitch, sess, source, id)
	return OK, nil
}

// Reset closes the impersonation window: restores the saved log_statement
// byte for byte, makes the original identity active again, and records
// the reverse transition. Source of the record is the identity being
// reset from.
func (g *Guard) Reset(ctx context.Context, sess *session.Session) (string, error) {
	source := sess.Active()
	st, ok := sess.End()
	if !ok {
		return "", &NotSwitchedError{}
	}

	sess.Settings().Set(config.KeyLogStatement, st.SavedLogStatement, config.ScopeSession)
	g.record(audit.TypeReset, sess, source, st.Original)
	return OK, nil
}

// Call is the single public callable, routing on invocation shape:
// one non-nil name switches in, zero arguments or one nil argument
// switches out, anything else is a protocol violation.
func (g *Guard) Call(ctx context.Context, sess *session.Session, args []*string) (string, error) {
	switch {
	case len(args) == 0:
		return g.Reset(ctx, sess)
	case len(args) == 1 && args[0] == nil:
		return g.Reset(ctx, sess)
	case len(args) == 1:
		return g.SwitchTo(ctx, sess, *args[0])
	default:
		return "", &InvalidInvocationError{Arity: len(args)}
	}
}

// OpenSession starts the session's audit trail.
func (g *Guard) OpenSession(sess *session.Session) {
	g.lifecycle(audit.TypeSessionOpen, sess, "session opened")
}

// CloseSession ends the session's audit trail. An impersonation window
// still open at close time is reset first, so the restoring transition
// is on record before the close.
func (g *Guard) CloseSession(ctx context.Context, sess *session.Session) {
	if sess.Switched() {
		_, _ = g.Reset(ctx, sess)
	}
	g.lifecycle(audit.TypeSessionClose, sess, "session closed")
}

// TransitionMessage renders the canonical audit line for a transition.
// The privilege label is applied per side from that side's own flag.
func TransitionMessage(source, target identity.Identity) string {
	return fmt.Sprintf("%sRole %s transitioning to %sRole %s",
		source.Label(), source.Name, target.Label(), target.Name)
}

// record writes a transition entry. Best-effort: the audit sink is not
// allowed to fail a switch that already happened.
func (g *Guard) record(entryType string, sess *session.Session, source, target identity.Identity) {
	if g.log == nil {
		return
	}
	_ = g.log.Record(audit.AuditEntry{
		Type:     entryType,
		Severity: audit.SeverityInfo,
		Session:  sess.ID,
		Source:   audit.AuditIdentity{Name: source.Name, Superuser: source.Superuser},
		Target:   audit.AuditIdentity{Name: target.Name, Superuser: target.Superuser},
		Message:  TransitionMessage(source, target),
	})
}

func (g *Guard) lifecycle(entryType string, sess *session.Session, message string) {
	if g.log == nil {
		return
	}
	user := sess.Active()
	_ = g.log.Record(audit.AuditEntry{
		Type:     entryType,
		Severity: audit.SeverityInfo,
		Session:  sess.ID,
		Source:   audit.AuditIdentity{Name: user.Name, Superuser: user.Superuser},
		Message:  message,
	})
}
