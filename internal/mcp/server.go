package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/crunchyericford/set-user/internal/audit"
	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/guard"
	"github.com/crunchyericford/set-user/internal/identity"
	"github.com/crunchyericford/set-user/internal/pipeline"
	"github.com/crunchyericford/set-user/internal/session"
)

// Config holds MCP server configuration.
type Config struct {
	ConfigPath   string
	AuditLogPath string
	User         string // initial identity for the connection's session
}

// Server wraps the MCP SDK server around one set-user session. Each
// served connection acts as a single session: the switch state and the
// forced audit verbosity live for exactly as long as the connection.
type Server struct {
	mcpServer *mcpsdk.Server
	guard     *guard.Guard
	pipe      *pipeline.Pipeline
	dir       identity.Directory
	sess      *session.Session
	auditLog  *audit.Log
	auditPath string
}

// New creates an MCP server with the session opened as cfg.User.
func New(cfg Config) (*Server, error) {
	fileCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = fileCfg.AuditLog
	}
	if cfg.User == "" {
		cfg.User = "admin"
	}

	dir, err := identity.OpenDirectory(fileCfg.Directory.Driver, fileCfg.Directory.SQLitePath, fileCfg.StaticPrincipals())
	if err != nil {
		return nil, err
	}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	user, err := dir.Resolve(context.Background(), cfg.User)
	if err != nil {
		return nil, err
	}

	store := config.NewStore(fileCfg)
	pipe := pipeline.New(nil)
	pipe.Install(pipeline.NewGuardInterceptor(store, auditLog))
	pipe.Install(pipeline.NewStatementLogInterceptor(auditLog))

	s := &Server{
		guard:     guard.New(dir, auditLog),
		pipe:      pipe,
		dir:       dir,
		sess:      session.New(user, config.NewView(store)),
		auditLog:  auditLog,
		auditPath: cfg.AuditLogPath,
	}
	s.guard.OpenSession(s.sess)

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "set-user",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled or the connection ends.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the connection's session, resetting any open
// impersonation window, then releases the audit log and directory.
func (s *Server) Close() error {
	s.guard.CloseSession(context.Background(), s.sess)

	var errs []error
	if s.auditLog != nil {
		errs = append(errs, s.auditLog.Close())
	}
	if c, ok := s.dir.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// registerTools adds all set-user tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_user",
		Description: "Switch the session to another principal. Fails if a previous switch has not been reset.",
	}, s.handleSetUser)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reset_user",
		Description: "Restore the session's original identity and its saved log_statement setting.",
	}, s.handleResetUser)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "run_statement",
		Description: "Run a statement through the session's interception pipeline. Blocked statements return an error with the reason.",
	}, s.handleRunStatement)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "session_status",
		Description: "Report the session's current identity, switch state, and log_statement level.",
	}, s.handleSessionStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "verify_audit",
		Description: "Verify the audit log's hash chain and report the first broken link, if any.",
	}, s.handleVerifyAudit)
}
