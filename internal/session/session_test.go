package session

import (
	"strings"
	"sync"
	"testing"

	"github.com/crunchyericford/set-user/internal/config"
	"github.com/crunchyericford/set-user/internal/identity"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	store := config.NewStore(config.DefaultConfig())
	return New(identity.Identity{Name: "admin", Superuser: true}, config.NewView(store))
}

func TestNewSessionID(t *testing.T) {
	s := testSession(t)
	if !strings.HasPrefix(s.ID, "sess-") {
		t.Errorf("session ID missing prefix: %q", s.ID)
	}
	if len(s.ID) != len("sess-")+16 {
		t.Errorf("unexpected session ID length: %q", s.ID)
	}
}

func TestSessionIDsUnique(t *testing.T) {
	a := testSession(t)
	b := testSession(t)
	if a.ID == b.ID {
		t.Errorf("expected unique session IDs, both %q", a.ID)
	}
}

func TestBeginEndRoundTrip(t *testing.T) {
	s := testSession(t)
	admin := s.Active()

	ok := s.Begin(SwitchState{Original: admin, SavedLogStatement: "none"},
		identity.Identity{Name: "alice"})
	if !ok {
		t.Fatal("expected Begin to succeed on fresh session")
	}
	if !s.Switched() {
		t.Error("expected session to be switched")
	}
	if got := s.Active().Name; got != "alice" {
		t.Errorf("active = %q, want alice", got)
	}

	st, ok := s.End()
	if !ok {
		t.Fatal("expected End to succeed while switched")
	}
	if st.Original != admin {
		t.Errorf("End returned %+v, want original %+v", st.Original, admin)
	}
	if st.SavedLogStatement != "none" {
		t.Errorf("saved log_statement = %q, want none", st.SavedLogStatement)
	}
	if s.Switched() {
		t.Error("expected window closed after End")
	}
	if got := s.Active(); got != admin {
		t.Errorf("active after End = %+v, want %+v", got, admin)
	}
}

func TestBeginRefusesStacking(t *testing.T) {
	s := testSession(t)
	admin := s.Active()

	if !s.Begin(SwitchState{Original: admin}, identity.Identity{Name: "alice"}) {
		t.Fatal("first Begin failed")
	}
	if s.Begin(SwitchState{Original: s.Active()}, identity.Identity{Name: "bob"}) {
		t.Fatal("second Begin must fail while switched")
	}

	// State unchanged by the refused Begin: End restores the original
	st, ok := s.End()
	if !ok {
		t.Fatal("End failed")
	}
	if st.Original != admin {
		t.Errorf("slot corrupted by refused Begin: %+v", st.Original)
	}
	if got := s.Active(); got != admin {
		t.Errorf("active after End = %+v, want %+v", got, admin)
	}
}

func TestEndWithoutBegin(t *testing.T) {
	s := testSession(t)
	if _, ok := s.End(); ok {
		t.Error("expected End to fail on fresh session")
	}
}

func TestConcurrentBeginSingleWinner(t *testing.T) {
	s := testSession(t)
	admin := s.Active()

	var wg sync.WaitGroup
	wins := make(chan string, 10)
	for i := 0; i < 10; i++ {
		name := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Begin(SwitchState{Original: admin}, identity.Identity{Name: name}) {
				wins <- name
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one Begin to win, got %d", len(winners))
	}
	if got := s.Active().Name; got != winners[0] {
		t.Errorf("active = %q, want winner %q", got, winners[0])
	}
}
