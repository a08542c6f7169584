// Package featureset tracks the pixels currently reported as features.
//
// A pixel enters the set when an event there classifies as a feature and
// leaves it when a later event at the same pixel does not.
package featureset

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/efast/internal/domain/model"
)

// Set records active feature pixels.
type Set interface {
	// Observe applies one classification verdict for pixel p.
	// Returns true if membership changed.
	Observe(ctx context.Context, p model.Point, feature bool) bool

	// Contains reports whether p is currently active.
	Contains(ctx context.Context, p model.Point) bool

	// Snapshot returns the active pixels ordered by row then column.
	Snapshot(ctx context.Context) []model.Point

	// Reset removes every pixel.
	Reset(ctx context.Context)

	Size() int64
}

// node is an entry in the insertion-ordered list.
type node struct {
	p          model.Point
	prev, next *node
}

func (n *node) reset() {
	n.p = model.Point{}
	n.prev = nil
	n.next = nil
}

// inMemorySet keeps members in a map plus a doubly linked list ordered by
// insertion time so the oldest member can be evicted when bounded.
type inMemorySet struct {
	mu       sync.RWMutex
	members  map[model.Point]*node
	head     *node // newest
	tail     *node // oldest
	maxSize  int   // <= 0 means unbounded
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemorySet creates a feature set with configuration options.
func NewInMemorySet(opts ...Option) Set {
	s := &inMemorySet{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.members = make(map[model.Point]*node)
	s.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return s
}

// Observe inserts p on a positive verdict and removes it otherwise.
func (s *inMemorySet) Observe(ctx context.Context, p model.Point, feature bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if feature {
		return s.add(p)
	}
	return s.remove(p)
}

// add must be called with s.mu held.
func (s *inMemorySet) add(p model.Point) bool {
	if n, exists := s.members[p]; exists {
		// Refresh recency so eviction drops the stalest pixel.
		s.unlink(n)
		s.pushFront(n)
		return false
	}

	if s.maxSize > 0 && len(s.members) >= s.maxSize {
		s.evictOldest()
	}

	n := s.nodePool.Get().(*node)
	n.p = p
	s.pushFront(n)
	s.members[p] = n
	s.size.Add(1)
	return true
}

// remove must be called with s.mu held.
func (s *inMemorySet) remove(p model.Point) bool {
	n, exists := s.members[p]
	if !exists {
		return false
	}
	delete(s.members, p)
	s.unlink(n)
	n.reset()
	s.nodePool.Put(n)
	s.size.Add(-1)
	return true
}

func (s *inMemorySet) evictOldest() {
	if s.tail == nil {
		return
	}
	s.remove(s.tail.p)
}

func (s *inMemorySet) pushFront(n *node) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *inMemorySet) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		s.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}

// Contains reports whether p is active.
func (s *inMemorySet) Contains(ctx context.Context, p model.Point) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[p]
	return ok
}

// Snapshot returns a sorted copy of the active pixels.
func (s *inMemorySet) Snapshot(ctx context.Context) []model.Point {
	s.mu.RLock()
	out := make([]model.Point, 0, len(s.members))
	for p := range s.members {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Reset empties the set. Nodes go back to the pool.
func (s *inMemorySet) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := s.head; n != nil; {
		next := n.next
		n.reset()
		s.nodePool.Put(n)
		n = next
	}
	clear(s.members)
	s.head, s.tail = nil, nil
	s.size.Store(0)
}

// Size returns the number of active pixels.
func (s *inMemorySet) Size() int64 {
	return s.size.Load()
}
