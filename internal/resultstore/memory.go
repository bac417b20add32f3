package resultstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Memory is a Store that lives only as long as the process.
type Memory struct {
	entries sync.Map
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(_ context.Context, target string) (*Entry, bool, error) {
	v, ok := m.entries.Load(target)
	if !ok {
		return nil, false, nil
	}
	return v.(*Entry).Clone(), true, nil
}

func (m *Memory) Put(_ context.Context, e *Entry) error {
	if e == nil || e.Target == "" {
		return errors.New("entry without target")
	}
	m.entries.Store(e.Target, e.Clone())
	return nil
}

func (m *Memory) List(context.Context) ([]*Entry, error) {
	var out []*Entry
	m.entries.Range(func(_, v any) bool {
		out = append(out, v.(*Entry).Clone())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out, nil
}

func (m *Memory) Close() error { return nil }
