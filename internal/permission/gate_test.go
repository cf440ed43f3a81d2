package permission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakePrompter struct {
	current State
	answer  State
	err     error
	release chan struct{}
	prompts atomic.Int32
}

func (f *fakePrompter) Permission() State {
	return f.current
}

func (f *fakePrompter) RequestPermission(ctx context.Context) (State, error) {
	f.prompts.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.answer, f.err
}

func TestGate_Ensure(t *testing.T) {
	t.Parallel()

	t.Run("granted returns without prompting", func(t *testing.T) {
		p := &fakePrompter{current: Granted}
		g := NewGate(p)
		s, err := g.Ensure(context.Background())
		if err != nil || s != Granted {
			t.Fatalf("expected granted, got %s (%v)", s, err)
		}
		if p.prompts.Load() != 0 {
			t.Fatalf("expected no prompt, got %d", p.prompts.Load())
		}
	})

	t.Run("unknown prompts once and caches", func(t *testing.T) {
		p := &fakePrompter{current: Unknown, answer: Granted}
		g := NewGate(p)
		for i := 0; i < 3; i++ {
			s, err := g.Ensure(context.Background())
			if err != nil || s != Granted {
				t.Fatalf("expected granted, got %s (%v)", s, err)
			}
		}
		if p.prompts.Load() != 1 {
			t.Fatalf("expected 1 prompt, got %d", p.prompts.Load())
		}
	})

	t.Run("denied is never re-prompted", func(t *testing.T) {
		p := &fakePrompter{current: Unknown, answer: Denied}
		g := NewGate(p)
		for i := 0; i < 3; i++ {
			s, err := g.Ensure(context.Background())
			if err != nil || s != Denied {
				t.Fatalf("expected denied, got %s (%v)", s, err)
			}
		}
		if p.prompts.Load() != 1 {
			t.Fatalf("expected 1 prompt, got %d", p.prompts.Load())
		}
		if g.State() != Denied {
			t.Fatalf("expected cached denied, got %s", g.State())
		}
	})

	t.Run("platform denial is cached without prompting", func(t *testing.T) {
		p := &fakePrompter{current: Denied}
		g := NewGate(p)
		s, _ := g.Ensure(context.Background())
		if s != Denied || p.prompts.Load() != 0 {
			t.Fatalf("expected denied without prompt, got %s after %d prompts", s, p.prompts.Load())
		}
	})

	t.Run("dismissed prompt is not cached", func(t *testing.T) {
		p := &fakePrompter{current: Unknown, answer: Unknown}
		g := NewGate(p)
		for i := 0; i < 2; i++ {
			s, err := g.Ensure(context.Background())
			if err != nil || s != Unknown {
				t.Fatalf("expected unknown, got %s (%v)", s, err)
			}
		}
		if p.prompts.Load() != 2 {
			t.Fatalf("expected 2 prompts, got %d", p.prompts.Load())
		}
	})

	t.Run("prompt error is returned and not cached", func(t *testing.T) {
		boom := errors.New("platform unavailable")
		p := &fakePrompter{current: Unknown, err: boom}
		g := NewGate(p)
		if _, err := g.Ensure(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("expected platform error, got %v", err)
		}
		if g.State() != Unknown {
			t.Fatalf("expected unknown after error, got %s", g.State())
		}
	})
}

func TestGate_ConcurrentCallersShareOnePrompt(t *testing.T) {
	p := &fakePrompter{current: Unknown, answer: Granted, release: make(chan struct{})}
	g := NewGate(p)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan State, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := g.Ensure(context.Background())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results <- s
		}()
	}

	// Let every caller reach the gate before answering the prompt.
	deadline := time.After(2 * time.Second)
	for p.prompts.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("prompt never issued")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(p.release)
	wg.Wait()
	close(results)

	for s := range results {
		if s != Granted {
			t.Fatalf("expected granted, got %s", s)
		}
	}
	if n := p.prompts.Load(); n != 1 {
		t.Fatalf("expected exactly 1 prompt, got %d", n)
	}
}

func TestGate_CancelledWaiterDoesNotCancelPrompt(t *testing.T) {
	p := &fakePrompter{current: Unknown, answer: Granted, release: make(chan struct{})}
	g := NewGate(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Ensure(ctx)
		done <- err
	}()

	for p.prompts.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(p.release)
	s, err := g.Ensure(context.Background())
	if err != nil || s != Granted {
		t.Fatalf("expected granted after prompt completes, got %s (%v)", s, err)
	}
	if n := p.prompts.Load(); n != 1 {
		t.Fatalf("expected the original prompt to be reused, got %d prompts", n)
	}
}

func TestFixedPrompter(t *testing.T) {
	g := NewGate(Fixed(Granted))
	if s, _ := g.Ensure(context.Background()); s != Granted {
		t.Fatalf("expected granted, got %s", s)
	}
}
