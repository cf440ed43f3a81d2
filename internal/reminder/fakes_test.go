package reminder_test

import (
	"context"
	"sync"
	"sync/atomic"

	"devnotify/internal/models"
	"devnotify/internal/permission"
)

// fakeStore is an in-memory ReminderStore with per-operation failure injection.
type fakeStore struct {
	mu        sync.Mutex
	reminders map[int]models.Reminder

	getErr    error
	listErr   error
	putErr    map[int]error
	deleteErr error

	// blockPut holds Put for an event until the channel is closed.
	blockPut   map[int]chan struct{}
	putStarted chan int

	// blockDelete holds the next Delete for an event until the channel is closed.
	blockDelete   map[int]chan struct{}
	deleteStarted chan int

	gets    atomic.Int32
	puts    atomic.Int32
	deletes atomic.Int32
}

func newFakeStore(rs ...models.Reminder) *fakeStore {
	s := &fakeStore{
		reminders:  make(map[int]models.Reminder),
		putErr:     make(map[int]error),
		blockPut:      make(map[int]chan struct{}),
		putStarted:    make(chan int, 8),
		blockDelete:   make(map[int]chan struct{}),
		deleteStarted: make(chan int, 8),
	}
	for _, r := range rs {
		s.reminders[r.EventID] = r
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, _ models.Owner, eventID int) (models.Reminder, bool, error) {
	s.gets.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return models.Reminder{}, false, s.getErr
	}
	r, ok := s.reminders[eventID]
	return r, ok, nil
}

func (s *fakeStore) List(ctx context.Context, _ models.Owner) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) Put(ctx context.Context, _ models.Owner, r models.Reminder) error {
	s.puts.Add(1)
	s.mu.Lock()
	block := s.blockPut[r.EventID]
	s.mu.Unlock()
	if block != nil {
		s.putStarted <- r.EventID
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putErr[r.EventID]; err != nil {
		return err
	}
	s.reminders[r.EventID] = r
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, _ models.Owner, eventID int) error {
	s.deletes.Add(1)
	s.mu.Lock()
	block := s.blockDelete[eventID]
	delete(s.blockDelete, eventID)
	s.mu.Unlock()
	if block != nil {
		s.deleteStarted <- eventID
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.reminders, eventID)
	return nil
}

func (s *fakeStore) hold(eventID int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.blockPut[eventID] = ch
	return ch
}

func (s *fakeStore) holdDelete(eventID int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.blockDelete[eventID] = ch
	return ch
}

func (s *fakeStore) failDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *fakeStore) has(eventID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reminders[eventID]
	return ok
}

func (s *fakeStore) get(eventID int) models.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders[eventID]
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reminders)
}

type fakeGate struct {
	state permission.State
	err   error
	calls atomic.Int32
}

func (g *fakeGate) Ensure(context.Context) (permission.State, error) {
	g.calls.Add(1)
	return g.state, g.err
}

type fakeSubscriber struct {
	err    error
	calls  atomic.Int32
	resets atomic.Int32
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, owner models.Owner) error {
	f.calls.Add(1)
	return f.err
}

func (f *fakeSubscriber) Reset() {
	f.resets.Add(1)
}

type fakeSnapshots struct {
	deleted []int
	err     error
}

func (f *fakeSnapshots) DeleteEvent(ctx context.Context, eventID int) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}
