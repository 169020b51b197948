// Package stash parks states whose attempts failed on host resource
// exhaustion and hands them back once their backoff has elapsed.
package stash

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"
)

type settings struct {
	now    func() time.Time
	newKey func() uuid.UUID
}

// Option configures a Stash.
type Option func(*settings)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithKeyGenerator replaces uuid.New for entry keys.
func WithKeyGenerator(gen func() uuid.UUID) Option {
	return func(s *settings) { s.newKey = gen }
}

type entry[S any] struct {
	key    uuid.UUID
	state  S
	expiry time.Time
	seq    uint64
	index  int
}

// expiryQueue is a min-heap on expiry; seq keeps equal expiries FIFO.
type expiryQueue[S any] []*entry[S]

func (q expiryQueue[S]) Len() int { return len(q) }

func (q expiryQueue[S]) Less(i, j int) bool {
	if q[i].expiry.Equal(q[j].expiry) {
		return q[i].seq < q[j].seq
	}
	return q[i].expiry.Before(q[j].expiry)
}

func (q expiryQueue[S]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *expiryQueue[S]) Push(x any) {
	e := x.(*entry[S])
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *expiryQueue[S]) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Stash is a delay queue of states. It is safe for concurrent use.
type Stash[S any] struct {
	mu     sync.Mutex
	queue  expiryQueue[S]
	keys   map[uuid.UUID]struct{}
	seq    uint64
	now    func() time.Time
	newKey func() uuid.UUID
}

// New creates an empty stash.
func New[S any](opts ...Option) *Stash[S] {
	s := settings{now: time.Now, newKey: uuid.New}
	for _, opt := range opts {
		opt(&s)
	}
	return &Stash[S]{
		keys:   make(map[uuid.UUID]struct{}),
		now:    s.now,
		newKey: s.newKey,
	}
}

// Insert parks state until delay has elapsed.
func (s *Stash[S]) Insert(state S, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.newKey()
	for {
		if _, taken := s.keys[key]; !taken {
			break
		}
		key = s.newKey()
	}
	s.keys[key] = struct{}{}

	s.seq++
	heap.Push(&s.queue, &entry[S]{
		key:    key,
		state:  state,
		expiry: s.now().Add(delay),
		seq:    s.seq,
	})
}

// Release appends every state whose delay has elapsed to out, earliest
// expiry first, and returns how many were moved. It never waits.
func (s *Stash[S]) Release(out *[]S) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	moved := 0
	for s.queue.Len() > 0 && !s.queue[0].expiry.After(now) {
		e := heap.Pop(&s.queue).(*entry[S])
		delete(s.keys, e.key)
		*out = append(*out, e.state)
		moved++
	}
	return moved
}

// Flush appends every parked state to out in expiry order regardless of
// whether it is due.
func (s *Stash[S]) Flush(out *[]S) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := s.queue.Len()
	for s.queue.Len() > 0 {
		e := heap.Pop(&s.queue).(*entry[S])
		*out = append(*out, e.state)
	}
	clear(s.keys)
	return moved
}

// Amount returns the number of parked states, due or not, that have not been
// released.
func (s *Stash[S]) Amount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// NextExpiry returns the earliest expiry, or false when the stash is empty.
func (s *Stash[S]) NextExpiry() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		return time.Time{}, false
	}
	return s.queue[0].expiry, true
}
