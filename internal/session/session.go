package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/identity"
)

// SwitchState is what an identity switch saves: who the session was, and
// the audit verbosity in effect at that moment. It is held in a single
// nullable slot so both fields are always empty together or populated
// together.
type SwitchState struct {
	Original          identity.Identity
	SavedLogStatement string
}

// Session is one caller's serial command stream. It owns the switch slot
// and a session-scoped settings view. Commands in a session execute one
// at a time; the mutex only defends the slot against protocol-violating
// concurrent callers.
type Session struct {
	ID        string
	CreatedAt time.Time

	settings *config.View

	mu     sync.Mutex
	active identity.Identity
	saved  *SwitchState
}

// New creates a session acting as the given identity.
func New(user identity.Identity, settings *config.View) *Session {
	return &Session{
		ID:        newSessionID(),
		CreatedAt: time.Now().UTC(),
		settings:  settings,
		active:    user,
	}
}

func newSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess-%x", time.Now().UnixNano())
	}
	return "sess-" + hex.EncodeToString(b)
}

// Settings returns the session's settings view.
func (s *Session) Settings() *config.View {
	return s.settings
}

// Active returns the identity commands currently run as.
func (s *Session) Active() identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Switched reports whether an impersonation window is open.
func (s *Session) Switched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved != nil
}

// Begin opens the impersonation window: it fills the switch slot with st
// and makes target the active identity. Returns false, leaving everything
// untouched, if a window is already open.
func (s *Session) Begin(st SwitchState, target identity.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved != nil {
		return false
	}
	saved := st
	s.saved = &saved
	s.active = target
	return true
}

// End closes the impersonation window: it empties the switch slot and
// makes the saved original the active identity again. The second return
// is false if no window is open.
func (s *Session) End() (SwitchState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return SwitchState{}, false
	}
	st := *s.saved
	s.saved = nil
	s.active = st.Original
	return st, true
}
