package resultstore

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/bootforge/internal/ctxlog"
)

// Locked serializes access to each key of an underlying Store. Different
// keys never wait on each other.
type Locked struct {
	Store
	locks sync.Map // target -> *sync.Mutex
}

// NewLocked wraps s.
func NewLocked(s Store) *Locked {
	return &Locked{Store: s}
}

func (l *Locked) mutex(target string) *sync.Mutex {
	v, _ := l.locks.LoadOrStore(target, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Lock acquires the lock for target and returns its release function.
func (l *Locked) Lock(target string) (unlock func()) {
	mu := l.mutex(target)
	mu.Lock()
	return mu.Unlock
}

// Get waits for any in-flight update of target to finish before reading.
func (l *Locked) Get(ctx context.Context, target string) (*Entry, bool, error) {
	defer l.Lock(target)()
	return l.Store.Get(ctx, target)
}

func (l *Locked) Put(ctx context.Context, e *Entry) error {
	defer l.Lock(e.Target)()
	return l.Store.Put(ctx, e)
}

// Update runs fn on the current entry of target (nil if absent) and stores
// its result, all under the key's lock. Returning nil from fn leaves the
// store untouched. A corrupt entry is passed to fn as nil.
func (l *Locked) Update(ctx context.Context, target string, fn func(*Entry) (*Entry, error)) (*Entry, error) {
	defer l.Lock(target)()
	cur, _, err := l.Store.Get(ctx, target)
	if errors.Is(err, ErrRegistryCorrupt) {
		ctxlog.FromContext(ctx).Warn("Ignoring unreadable registry entry.", "target", target, "error", err)
		cur = nil
	} else if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return cur, err
	}
	next.Target = target
	if err := l.Store.Put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Unlocked gives access to the wrapped store for callers that already hold
// the key's lock.
func (l *Locked) Unlocked() Store { return l.Store }
