// Package resultstore defines the result registry: what the engine remembers
// about every target between invocations.
package resultstore

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"
)

// ErrRegistryCorrupt is returned when persisted state cannot be decoded.
// Callers treat the affected entry as absent.
var ErrRegistryCorrupt = errors.New("registry corrupt")

// Entry is the recorded result of the last successful build of a target.
type Entry struct {
	Target      string `yaml:"target"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
	// DepFingerprints maps every dependency to the fingerprint it had when
	// the target was built. Its key set is the recorded dependency set.
	DepFingerprints map[string]string `yaml:"dep_fingerprints,omitempty"`
	// Discovered is the dependency list produced by a deps_of: target.
	Discovered []string  `yaml:"discovered,omitempty"`
	BuiltAt    time.Time `yaml:"built_at"`
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.DepFingerprints = maps.Clone(e.DepFingerprints)
	c.Discovered = slices.Clone(e.Discovered)
	return &c
}

// Store persists entries keyed by target name.
type Store interface {
	// Get returns the entry for target. ok is false if the target was never
	// recorded. A corrupt entry is reported as ErrRegistryCorrupt.
	Get(ctx context.Context, target string) (e *Entry, ok bool, err error)
	Put(ctx context.Context, e *Entry) error
	// List returns all entries sorted by target name.
	List(ctx context.Context) ([]*Entry, error)
	Close() error
}
