package config

import "sync"

// Setting keys. Names follow the convention the reloadable toggles were
// configured under in the wild: a set_user. prefix for the guard's own
// settings, bare log_statement for the host verbosity knob.
const (
	KeyLogStatement     = "log_statement"
	KeyBlockAlterSystem = "set_user.block_alter_system"
	KeyBlockCopyProgram = "set_user.block_copy_program"
)

// Scope declares how far a settings write propagates.
type Scope string

const (
	// ScopeProcess writes the shared store; every session observes the
	// change on its next read.
	ScopeProcess Scope = "process"
	// ScopeSession writes a per-session overlay discarded with the session.
	ScopeSession Scope = "session"
)

// Store holds process-wide settings. Reads and writes are safe from any
// goroutine; a write is observed by the next read, never retroactively.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore creates a store seeded from the file configuration.
func NewStore(cfg *Config) *Store {
	s := &Store{values: make(map[string]string)}
	s.Apply(cfg)
	return s
}

// Apply re-seeds the reloadable keys from a file configuration.
// Used at startup and by the config reloader.
func (s *Store) Apply(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyLogStatement] = cfg.LogStatement
	s.values[KeyBlockAlterSystem] = formatBool(cfg.Policy.BlockAlterSystem)
	s.values[KeyBlockCopyProgram] = formatBool(cfg.Policy.BlockCopyProgram)
}

// Get returns the value for key, or "" when unset.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set writes a process-wide value.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Bool reads a boolean setting. Anything but "on" is false.
func (s *Store) Bool(key string) bool {
	return s.Get(key) == "on"
}

func formatBool(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// View is a session-scoped overlay over a Store. Session-scope writes land
// in the overlay and die with the session; process-scope writes pass
// through to the base store.
type View struct {
	base *Store

	mu        sync.Mutex
	overrides map[string]string
}

// NewView creates an empty overlay over base.
func NewView(base *Store) *View {
	return &View{base: base, overrides: make(map[string]string)}
}

// Get returns the session's effective value for key: the overlay if
// present, the base store otherwise.
func (v *View) Get(key string) string {
	v.mu.Lock()
	val, ok := v.overrides[key]
	v.mu.Unlock()
	if ok {
		return val
	}
	return v.base.Get(key)
}

// Set writes key at the given scope.
func (v *View) Set(key, value string, scope Scope) {
	if scope == ScopeProcess {
		v.base.Set(key, value)
		return
	}
	v.mu.Lock()
	v.overrides[key] = value
	v.mu.Unlock()
}

// Bool reads a boolean setting through the overlay.
func (v *View) Bool(key string) bool {
	return v.Get(key) == "on"
}
