package resultstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	in := &Entry{Target: "a", Fingerprint: "f1", DepFingerprints: map[string]string{"b": "f2"}, BuiltAt: time.Unix(10, 0)}
	require.NoError(t, s.Put(ctx, in))

	// Mutating the caller's copy must not leak into the store.
	in.DepFingerprints["b"] = "changed"

	got, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f2", got.DepFingerprints["b"])

	require.Error(t, s.Put(ctx, &Entry{}))
}

func TestMemory_ListSorted(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, &Entry{Target: n}))
	}
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Target)
	assert.Equal(t, "c", list[2].Target)
}

func TestLocked_UpdateIsLinearizable(t *testing.T) {
	ctx := context.Background()
	s := NewLocked(NewMemory())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "counter", func(cur *Entry) (*Entry, error) {
				next := &Entry{Discovered: []string{}}
				if cur != nil {
					next.Discovered = append(next.Discovered, cur.Discovered...)
				}
				next.Discovered = append(next.Discovered, "x")
				return next, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, ok, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Discovered, n)
}

func TestLocked_UpdateKeepsEntryOnNilOrError(t *testing.T) {
	ctx := context.Background()
	s := NewLocked(NewMemory())
	require.NoError(t, s.Put(ctx, &Entry{Target: "a", Fingerprint: "f"}))

	cur, err := s.Update(ctx, "a", func(*Entry) (*Entry, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, "f", cur.Fingerprint)

	_, err = s.Update(ctx, "a", func(*Entry) (*Entry, error) { return nil, fmt.Errorf("boom") })
	require.Error(t, err)

	got, _, _ := s.Get(ctx, "a")
	assert.Equal(t, "f", got.Fingerprint)
}

type corruptStore struct{ *Memory }

func (corruptStore) Get(context.Context, string) (*Entry, bool, error) {
	return nil, false, fmt.Errorf("decoding: %w", ErrRegistryCorrupt)
}

func TestLocked_UpdateTreatsCorruptAsAbsent(t *testing.T) {
	s := NewLocked(corruptStore{NewMemory()})
	var seen *Entry
	_, err := s.Update(context.Background(), "a", func(cur *Entry) (*Entry, error) {
		seen = cur
		return &Entry{Fingerprint: "new"}, nil
	})
	require.NoError(t, err)
	assert.Nil(t, seen)
}

func TestLocked_DifferentKeysDoNotBlock(t *testing.T) {
	s := NewLocked(NewMemory())
	unlock := s.Lock("a")
	defer unlock()

	done := make(chan struct{})
	go func() {
		_ = s.Put(context.Background(), &Entry{Target: "b"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put on an unrelated key blocked")
	}
}
