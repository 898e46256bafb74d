package state

import (
	"sync"
	"sync/atomic"
)

// Transition is the outcome of one Dispatch.
type Transition struct {
	Event   Event
	Prev    Snapshot
	Next    Snapshot
	Applied bool
}

// Observer is called for every dispatched event, applied or not, in dispatch
// order. It runs while the store is locked and must not call back into it.
type Observer func(Transition)

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to see every transition.
func WithObserver(fn Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, fn) }
}

// WithInitial replaces the starting snapshot.
func WithInitial(snap Snapshot) Option {
	return func(s *Store) { s.snap = snap }
}

// Store owns the session snapshot. Dispatch is the only way to change it and
// applies one event at a time.
type Store struct {
	mu        sync.Mutex
	snap      Snapshot
	observers []Observer
	subs      map[*subscription]struct{}
	closed    bool

	tokens atomic.Uint64
}

type subscription struct {
	ch chan Snapshot
}

// NewStore creates a store holding New() unless WithInitial says otherwise.
func NewStore(opts ...Option) *Store {
	s := &Store{
		snap: New(),
		subs: make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextToken allocates a request token. Tokens are strictly increasing, so a
// later request always supersedes an earlier one for the same resource.
func (s *Store) NextToken() uint64 {
	return s.tokens.Add(1)
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Dispatch applies ev and publishes the result to subscribers.
func (s *Store) Dispatch(ev Event) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snap
	next, applied := Reduce(prev, ev)
	if applied {
		next.Version = prev.Version + 1
		s.snap = next
	}
	t := Transition{Event: ev, Prev: prev, Next: s.snap, Applied: applied}
	for _, fn := range s.observers {
		fn(t)
	}
	if applied {
		for sub := range s.subs {
			sub.offer(s.snap)
		}
	}
	return t
}

// Subscribe returns a channel that always holds the most recent snapshot the
// subscriber has not read yet, starting with the current one. Intermediate
// snapshots are dropped for slow readers. The returned func unsubscribes and
// closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	sub := &subscription{ch: make(chan Snapshot, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	s.subs[sub] = struct{}{}
	sub.offer(s.snap)
	s.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[sub]; ok {
				delete(s.subs, sub)
				close(sub.ch)
			}
		})
	}
}

// Close ends every subscription. Dispatch keeps working afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.ch)
	}
}

// offer replaces any unread snapshot with snap. Callers hold the store lock,
// so offer is the only sender and never blocks.
func (sub *subscription) offer(snap Snapshot) {
	select {
	case sub.ch <- snap:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snap:
	default:
	}
}
