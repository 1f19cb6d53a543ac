package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crunchyericford/set-user/internal/audit"
	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/guard"
	"github.com/crunchyericford/set-user/internal/identity"
	"github.com/crunchyericford/set-user/internal/model"
	"github.com/crunchyericford/set-user/internal/pipeline"
	"github.com/crunchyericford/set-user/internal/session"
)

// Config holds HTTP API server configuration. Listen and AuditLogPath
// override the config file when set.
type Config struct {
	Listen       string
	ConfigPath   string
	AuditLogPath string
}

// Server is the HTTP control API. It owns the shared settings store, the
// statement pipeline, and the live session table; the guard and the
// interceptors do the actual enforcement.
type Server struct {
	cfg      Config
	store    *config.Store
	dir      identity.Directory
	guard    *guard.Guard
	pipe     *pipeline.Pipeline
	auditLog *audit.Log

	mu         sync.Mutex
	configHash string

	sessions sync.Map // session id → *session.Session

	mux *http.ServeMux
	srv *http.Server
}

// New creates a server from the config file at cfg.ConfigPath, falling
// back to built-in defaults when the file is missing.
func New(cfg Config) (*Server, error) {
	fileCfg, hash, err := config.LoadConfigWithHash(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Listen == "" {
		cfg.Listen = fileCfg.Listen
	}
	if cfg.AuditLogPath == "" {
		cfg.AuditLogPath = fileCfg.AuditLog
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

	store := config.NewStore(fileCfg)

	// Statement logging is installed after the guard so it sits outermost
	// and records attempts the guard then blocks.
	pipe := pipeline.New(nil)
	pipe.Install(pipeline.NewGuardInterceptor(store, auditLog))
	pipe.Install(pipeline.NewStatementLogInterceptor(auditLog))

	s := &Server{
		cfg:        cfg,
		store:      store,
		dir:        dir,
		guard:      guard.New(dir, auditLog),
		pipe:       pipe,
		auditLog:   auditLog,
		configHash: hash,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", s.handleSessions)
	mux.HandleFunc("/v1/sessions/", s.handleSession)
	mux.HandleFunc("/v1/policy", s.handlePolicy)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.mux = mux

	s.srv = &http.Server{Addr: cfg.Listen, Handler: s}
	return s, nil
}

// Start begins listening for API requests. Blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Close closes every live session, the audit log, and the directory.
func (s *Server) Close() error {
	s.sessions.Range(func(key, value any) bool {
		sess := value.(*session.Session)
		s.guard.CloseSession(context.Background(), sess)
		s.sessions.Delete(key)
		return true
	})

	var errs []error
	if s.auditLog != nil {
		errs = append(errs, s.auditLog.Close())
	}
	if c, ok := s.dir.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Reload re-reads the config file and applies the policy toggles and the
// log_statement default to the shared store. The listen address and the
// directory driver are fixed for the process lifetime. Returns false
// when the file content hash is unchanged and nothing was applied.
func (s *Server) Reload() (bool, error) {
	cfg, hash, err := config.LoadConfigWithHash(s.cfg.ConfigPath)
	if err != nil {
		return false, fmt.Errorf("failed to reload config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.configHash {
		return false, nil
	}
	s.store.Apply(cfg)
	s.configHash = hash
	return true, nil
}

// ServeHTTP dispatches incoming requests to the route handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func stateOf(sess *session.Session) model.SessionState {
	user := sess.Active()
	return model.SessionState{
		Session:      sess.ID,
		User:         user.Name,
		Superuser:    user.Superuser,
		Switched:     sess.Switched(),
		LogStatement: sess.Settings().Get(config.KeyLogStatement),
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", errors.New("missing user"))
		return
	}

	id, err := s.dir.Resolve(r.Context(), req.User)
	if err != nil {
		writeGuardError(w, err)
		return
	}

	sess := session.New(id, config.NewView(s.store))
	s.sessions.Store(sess.ID, sess)
	s.guard.OpenSession(sess)
	writeJSON(w, http.StatusCreated, stateOf(sess))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	var sub string
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id, sub = id[:i], id[i+1:]
	}

	v, ok := s.sessions.Load(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_session", fmt.Errorf("unknown session %q", id))
		return
	}
	sess := v.(*session.Session)

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, stateOf(sess))
		case http.MethodDelete:
			s.guard.CloseSession(r.Context(), sess)
			s.sessions.Delete(id)
			writeJSON(w, http.StatusOK, stateOf(sess))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case "call":
		s.handleCall(w, r, sess)
	case "statements":
		s.handleStatement(w, r, sess)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Args []*string `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid request body: %w", err))
		return
	}

	status, err := s.guard.Call(r.Context(), sess, req.Args)
	if err != nil {
		writeGuardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", errors.New("missing text"))
		return
	}

	stmt := model.Statement{Class: pipeline.Classify(req.Text), Text: req.Text}
	res, err := s.pipe.Submit(r.Context(), sess, stmt)
	if err != nil {
		var blocked *pipeline.PolicyBlockedError
		if errors.As(err, &blocked) {
			writeBlocked(w, blocked)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tag": res.Tag})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"block_alter_system": s.store.Bool(config.KeyBlockAlterSystem),
		"block_copy_program": s.store.Bool(config.KeyBlockCopyProgram),
		"log_statement":      s.store.Get(config.KeyLogStatement),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// writeGuardError maps the guard's error taxonomy onto HTTP status codes.
func writeGuardError(w http.ResponseWriter, err error) {
	var (
		already *guard.AlreadySwitchedError
		notSw   *guard.NotSwitchedError
		unknown *identity.UnknownPrincipalError
		invalid *guard.InvalidInvocationError
	)
	switch {
	case errors.As(err, &already):
		writeError(w, http.StatusConflict, "already_switched", err)
	case errors.As(err, &notSw):
		writeError(w, http.StatusConflict, "not_switched", err)
	case errors.As(err, &unknown):
		writeError(w, http.StatusNotFound, "unknown_principal", err)
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid_invocation", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}

func writeBlocked(w http.ResponseWriter, blocked *pipeline.PolicyBlockedError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"blocked": true,
		"class":   string(blocked.Class),
		"reason":  blocked.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
