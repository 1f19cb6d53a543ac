package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/crunchyericford/set-user/internal/model"
	"github.com/crunchyericford/set-user/internal/session"
)

// Handler executes a statement on behalf of a session.
type Handler func(ctx context.Context, sess *session.Session, stmt model.Statement) (model.Result, error)

// Interceptor is one link in the pipeline's delegation chain. An
// interceptor runs its checks and then either calls next with the
// statement unmodified or returns an error before any side effect.
type Interceptor interface {
	Name() string
	Intercept(ctx context.Context, sess *session.Session, stmt model.Statement, next Handler) (model.Result, error)
}

// Pipeline is the mount point commands pass through. Interceptors form an
// ordered stack: Install pushes, Uninstall pops, and submission walks from
// the most recently installed interceptor down to the default executor.
// Popping restores the prior chain exactly, the empty chain included.
type Pipeline struct {
	mu    sync.RWMutex
	exec  Handler
	stack []Interceptor
}

// New creates a pipeline with the given default executor. A nil exec
// falls back to AckExecutor.
func New(exec Handler) *Pipeline {
	if exec == nil {
		exec = AckExecutor
	}
	return &Pipeline{exec: exec}
}

// Install pushes an interceptor. The newest interceptor sees each
// statement first and delegates to what was installed before it.
func (p *Pipeline) Install(i Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stack = append(p.stack, i)
}

// Uninstall pops the most recently installed interceptor and returns it,
// or nil when the chain is already empty.
func (p *Pipeline) Uninstall() Interceptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stack) == 0 {
		return nil
	}
	i := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return i
}

// Depth returns the number of installed interceptors.
func (p *Pipeline) Depth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stack)
}

// Submit runs one statement through the chain. The chain is snapshotted
// up front, so an install or uninstall during execution applies to the
// next statement, not this one.
func (p *Pipeline) Submit(ctx context.Context, sess *session.Session, stmt model.Statement) (model.Result, error) {
	p.mu.RLock()
	chain := make([]Interceptor, len(p.stack))
	copy(chain, p.stack)
	exec := p.exec
	p.mu.RUnlock()

	next := exec
	for _, ic := range chain {
		ic, prev := ic, next
		next = func(ctx context.Context, sess *session.Session, stmt model.Statement) (model.Result, error) {
			return ic.Intercept(ctx, sess, stmt, prev)
		}
	}
	return next(ctx, sess, stmt)
}

// AckExecutor is the pipeline's stand-in executor: it acknowledges the
// statement with a completion tag and does nothing else. The surrounding
// host supplies a real executor in deployments that have one.
func AckExecutor(_ context.Context, _ *session.Session, stmt model.Statement) (model.Result, error) {
	return model.Result{Tag: CompletionTag(stmt.Text)}, nil
}

// CompletionTag derives a completion tag from the statement's leading
// keywords, e.g. "ALTER SYSTEM" or "SELECT".
func CompletionTag(text string) string {
	words := Keywords(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) >= 2 && words[0] == "ALTER" {
		return words[0] + " " + words[1]
	}
	return words[0]
}

// Keywords returns the statement's bare-word tokens, uppercased, with
// quoted regions skipped. Quoting follows the usual SQL rules: single
// quotes for strings with '' as the escape, double quotes for
// identifiers.
func Keywords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToUpper(cur.String()))
			cur.Reset()
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'':
			flush()
			for i++; i < len(runes); i++ {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i++
						continue
					}
					break
				}
			}
		case r == '"':
			flush()
			for i++; i < len(runes); i++ {
				if runes[i] == '"' {
					break
				}
			}
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9' && cur.Len() > 0):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}
