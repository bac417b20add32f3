package inmemorystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/bootforge/internal/nodestore"
)

type slot struct {
	done    chan struct{}
	once    sync.Once
	status  nodestore.Status
	outcome nodestore.Outcome
	mu      sync.Mutex
}

// Store is an in-memory implementation of nodestore.Store. Each target gets
// a slot in a sync.Map; the slot's done channel is the rendezvous between
// the owner and everyone waiting for the target.
type Store struct {
	slots sync.Map // Key: target name, Value: *slot
}

var _ nodestore.Store = (*Store)(nil)

// New creates a new, empty in-memory node state store.
func New() *Store {
	return &Store{}
}

func (s *Store) slot(target string) (*slot, bool) {
	v, loaded := s.slots.LoadOrStore(target, &slot{done: make(chan struct{})})
	return v.(*slot), !loaded
}

// Claim implements nodestore.Store.
func (s *Store) Claim(_ context.Context, target string) (bool, <-chan struct{}) {
	sl, created := s.slot(target)
	return created, sl.done
}

// Finish implements nodestore.Store.
func (s *Store) Finish(_ context.Context, target string, out nodestore.Outcome) error {
	sl, _ := s.slot(target)
	finished := false
	sl.once.Do(func() {
		sl.mu.Lock()
		sl.outcome = out
		sl.status = out.Status
		sl.mu.Unlock()
		close(sl.done)
		finished = true
	})
	if !finished {
		return fmt.Errorf("target %q finished twice", target)
	}
	return nil
}

// SetStatus implements nodestore.Store.
func (s *Store) SetStatus(_ context.Context, target string, status nodestore.Status) error {
	sl, _ := s.slot(target)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.status = status
	return nil
}

// GetStatus implements nodestore.Store.
func (s *Store) GetStatus(_ context.Context, target string) nodestore.Status {
	v, ok := s.slots.Load(target)
	if !ok {
		return nodestore.StatusPending
	}
	sl := v.(*slot)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.status
}

// GetOutcome implements nodestore.Store.
func (s *Store) GetOutcome(_ context.Context, target string) (nodestore.Outcome, bool) {
	v, ok := s.slots.Load(target)
	if !ok {
		return nodestore.Outcome{}, false
	}
	sl := v.(*slot)
	select {
	case <-sl.done:
	default:
		return nodestore.Outcome{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.outcome, true
}
