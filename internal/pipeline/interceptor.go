package pipeline

import (
	"context"
	"fmt"

	"github.com/crunchyericford/set-user/internal/audit"
	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/model"
	"github.com/crunchyericford/set-user/internal/session"
)

// PolicyBlockedError is returned when a statement class is refused while
// an impersonation window is open. It is raised strictly before the
// statement has any side effect.
type PolicyBlockedError struct {
	Class model.CommandClass
}

// Kind returns the short command-kind label carried by the error.
func (e *PolicyBlockedError) Kind() string {
	switch e.Class {
	case model.ClassAlterSystem:
		return "alter-system-class"
	case model.ClassCopyProgram:
		return "copy-program"
	default:
		return string(e.Class)
	}
}

func (e *PolicyBlockedError) Error() string {
	switch e.Class {
	case model.ClassAlterSystem:
		return "ALTER SYSTEM blocked by set_user config"
	case model.ClassCopyProgram:
		return "COPY PROGRAM blocked by set_user config"
	default:
		return fmt.Sprintf("%s blocked by set_user config", e.Class)
	}
}

// GuardInterceptor gates statements while a session is impersonating.
//
// Evaluation order:
//  1. Session not switched: delegate immediately, no checks.
//  2. alter-system-class with set_user.block_alter_system on: block.
//  3. copy-with-program-invocation with set_user.block_copy_program on: block.
//  4. Everything else: delegate with the statement unmodified.
//
// The toggles are read per statement from the shared store, so a reload
// takes effect on the next statement evaluated.
type GuardInterceptor struct {
	store *config.Store
	log   *audit.Log
}

// NewGuardInterceptor creates the guard link. A nil log disables block
// recording (tests).
func NewGuardInterceptor(store *config.Store, log *audit.Log) *GuardInterceptor {
	return &GuardInterceptor{store: store, log: log}
}

// Name identifies the link in chain listings.
func (gi *GuardInterceptor) Name() string { return "set-user-guard" }

// Intercept implements Interceptor.
func (gi *GuardInterceptor) Intercept(ctx context.Context, sess *session.Session, stmt model.Statement, next Handler) (model.Result, error) {
	if !sess.Switched() {
		return next(ctx, sess, stmt)
	}

	switch stmt.Class {
	case model.ClassAlterSystem:
		if gi.store.Bool(config.KeyBlockAlterSystem) {
			return model.Result{}, gi.block(sess, stmt)
		}
	case model.ClassCopyProgram:
		if gi.store.Bool(config.KeyBlockCopyProgram) {
			return model.Result{}, gi.block(sess, stmt)
		}
	}

	return next(ctx, sess, stmt)
}

func (gi *GuardInterceptor) block(sess *session.Session, stmt model.Statement) error {
	err := &PolicyBlockedError{Class: stmt.Class}
	if gi.log != nil {
		active := sess.Active()
		_ = gi.log.Record(audit.AuditEntry{
			Type:     audit.TypeBlock,
			Severity: audit.SeverityError,
			Session:  sess.ID,
			Source:   audit.AuditIdentity{Name: active.Name, Superuser: active.Superuser},
			Class:    string(stmt.Class),
			Text:     stmt.Text,
			Message:  err.Error(),
		})
	}
	return err
}

// StatementLogInterceptor records statements the session's current
// log_statement level covers. Installed above the guard link so attempts
// are captured even when the guard blocks them; inside an impersonation
// window the forced "all" level captures everything.
type StatementLogInterceptor struct {
	log *audit.Log
}

// NewStatementLogInterceptor creates the statement logging link.
func NewStatementLogInterceptor(log *audit.Log) *StatementLogInterceptor {
	return &StatementLogInterceptor{log: log}
}

// Name identifies the link in chain listings.
func (si *StatementLogInterceptor) Name() string { return "statement-log" }

// Intercept implements Interceptor.
func (si *StatementLogInterceptor) Intercept(ctx context.Context, sess *session.Session, stmt model.Statement, next Handler) (model.Result, error) {
	level := model.ParseLogLevel(sess.Settings().Get(config.KeyLogStatement))
	if si.log != nil && level.Covers(stmt.Class) {
		active := sess.Active()
		_ = si.log.Record(audit.AuditEntry{
			Type:     audit.TypeStatement,
			Severity: audit.SeverityInfo,
			Session:  sess.ID,
			Source:   audit.AuditIdentity{Name: active.Name, Superuser: active.Superuser},
			Class:    string(stmt.Class),
			Text:     stmt.Text,
		})
	}
	return next(ctx, sess, stmt)
}
