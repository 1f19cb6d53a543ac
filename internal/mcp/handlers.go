package mcp

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crunchyericford/set-user/internal/audit"
	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/model"
	"github.com/crunchyericford/set-user/internal/pipeline"
)

// --- Input/Output types ---

// SetUserInput defines parameters for the set_user tool.
type SetUserInput struct {
	User string `json:"user" jsonschema:"principal to impersonate"`
}

// ResetUserInput is empty: reset takes no arguments.
type ResetUserInput struct{}

// SwitchOutput reports the outcome of a switch or reset.
type SwitchOutput struct {
	Status string `json:"status,omitempty"`
	User   string `json:"user,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StatementInput defines parameters for the run_statement tool.
type StatementInput struct {
	Text string `json:"text" jsonschema:"statement to run through the pipeline"`
}

// StatementOutput contains the completion tag or block details.
type StatementOutput struct {
	Tag     string `json:"tag,omitempty"`
	Blocked bool   `json:"blocked,omitempty"`
	Class   string `json:"class,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// StatusInput is empty: status takes no arguments.
type StatusInput struct{}

// StatusOutput describes the session's current standing.
type StatusOutput struct {
	Session      string `json:"session"`
	User         string `json:"user"`
	Superuser    bool   `json:"superuser"`
	Switched     bool   `json:"switched"`
	LogStatement string `json:"log_statement"`
}

// VerifyInput is empty: verification covers the whole log.
type VerifyInput struct{}

// VerifyOutput reports the audit chain's integrity.
type VerifyOutput struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// --- Handlers ---

func (s *Server) handleSetUser(ctx context.Context, req *mcpsdk.CallToolRequest, input SetUserInput) (*mcpsdk.CallToolResult, SwitchOutput, error) {
	status, err := s.guard.SwitchTo(ctx, s.sess, input.User)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, SwitchOutput{Error: err.Error()}, nil
	}
	return nil, SwitchOutput{Status: status, User: s.sess.Active().Name}, nil
}

func (s *Server) handleResetUser(ctx context.Context, req *mcpsdk.CallToolRequest, input ResetUserInput) (*mcpsdk.CallToolResult, SwitchOutput, error) {
	status, err := s.guard.Reset(ctx, s.sess)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, SwitchOutput{Error: err.Error()}, nil
	}
	return nil, SwitchOutput{Status: status, User: s.sess.Active().Name}, nil
}

func (s *Server) handleRunStatement(ctx context.Context, req *mcpsdk.CallToolRequest, input StatementInput) (*mcpsdk.CallToolResult, StatementOutput, error) {
	stmt := model.Statement{Class: pipeline.Classify(input.Text), Text: input.Text}
	res, err := s.pipe.Submit(ctx, s.sess, stmt)
	if err != nil {
		var blocked *pipeline.PolicyBlockedError
		if errors.As(err, &blocked) {
			out := StatementOutput{
				Blocked: true,
				Class:   string(blocked.Class),
				Reason:  blocked.Error(),
			}
			return &mcpsdk.CallToolResult{IsError: true}, out, nil
		}
		return nil, StatementOutput{}, err
	}
	return nil, StatementOutput{Tag: res.Tag}, nil
}

func (s *Server) handleSessionStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	user := s.sess.Active()
	return nil, StatusOutput{
		Session:      s.sess.ID,
		User:         user.Name,
		Superuser:    user.Superuser,
		Switched:     s.sess.Switched(),
		LogStatement: s.sess.Settings().Get(config.KeyLogStatement),
	}, nil
}

func (s *Server) handleVerifyAudit(ctx context.Context, req *mcpsdk.CallToolRequest, input VerifyInput) (*mcpsdk.CallToolResult, VerifyOutput, error) {
	if s.auditPath == "" {
		return nil, VerifyOutput{}, errors.New("no audit log configured")
	}
	result := audit.Verify(s.auditPath)
	return nil, VerifyOutput{
		Valid:     result.Valid,
		Lines:     result.Lines,
		Error:     result.Error,
		ErrorLine: result.ErrorLine,
	}, nil
}
