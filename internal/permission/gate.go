// Package permission negotiates notification permission with the platform.
//
// The platform is asked at most once at a time: concurrent callers share a
// single prompt, and a denial is remembered for the rest of the session.
package permission

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type State string

const (
	Unknown State = "unknown"
	Granted State = "granted"
	Denied  State = "denied"
)

// Prompter is the platform notification API.
type Prompter interface {
	// Permission reports the platform's current answer without prompting.
	Permission() State
	// RequestPermission shows the prompt and blocks until the user answers.
	RequestPermission(ctx context.Context) (State, error)
}

type Gate struct {
	prompter Prompter
	group    singleflight.Group

	mu     sync.Mutex
	cached State
}

func NewGate(p Prompter) *Gate {
	return &Gate{prompter: p, cached: Unknown}
}

// State returns the cached state, consulting the platform if nothing has been
// cached yet. It never prompts.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cached == Unknown {
		g.cached = normalize(g.prompter.Permission())
	}
	return g.cached
}

// Ensure returns Granted or Denied without side effects when either is known,
// otherwise prompts. A dismissed prompt yields Unknown and is not cached, so
// a later call may prompt again.
func (g *Gate) Ensure(ctx context.Context) (State, error) {
	if s := g.State(); s != Unknown {
		return s, nil
	}

	ch := g.group.DoChan("prompt", func() (interface{}, error) {
		// Another caller may have finished a prompt between State and DoChan.
		if s := g.State(); s != Unknown {
			return s, nil
		}
		// The prompt belongs to every waiter; one caller giving up must not
		// dismiss it for the others.
		s, err := g.prompter.RequestPermission(context.WithoutCancel(ctx))
		if err != nil {
			return Unknown, err
		}
		s = normalize(s)
		if s != Unknown {
			g.mu.Lock()
			g.cached = s
			g.mu.Unlock()
		}
		return s, nil
	})

	select {
	case <-ctx.Done():
		return Unknown, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Unknown, res.Err
		}
		return res.Val.(State), nil
	}
}

func normalize(s State) State {
	switch s {
	case Granted, Denied:
		return s
	default:
		return Unknown
	}
}

// Fixed is a Prompter for platforms without an interactive prompt; it always
// answers with the configured state.
type Fixed State

func (f Fixed) Permission() State {
	return State(f)
}

func (f Fixed) RequestPermission(context.Context) (State, error) {
	return State(f), nil
}
