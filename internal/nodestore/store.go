// Package nodestore defines the interface for the invocation-scoped state of
// targets: which targets are being built, and how each one finished.
//
// # Why Node Store Exists
//
// A single invocation can build the same target from several graphs: the
// root graph, the sub-build that brings a deps_of: target up to date, and
// any target a recipe updates on demand. The node store is the memo those
// graphs share, so every target is built at most once per invocation and
// later graphs reuse the first outcome.
//
// It holds mutable execution state only. The structure of each graph lives
// in dag.Graph; what persists across invocations lives in resultstore.
//
// # Lifecycle and Usage
//
// The node store is:
//  1. **Created** once per invocation (ephemeral, never persisted)
//  2. **Claimed** per target by the first executor that reaches it
//  3. **Finished** with the target's Outcome, waking every waiter
//  4. **Discarded** when the invocation ends
//
// # State Transitions
//
// Targets follow this lifecycle:
//
//	Pending → Running → Completed OR Failed
//	Pending → Skipped (an upstream target failed)
package nodestore

import (
	"context"
	"fmt"

	"github.com/vk/bootforge/internal/rules"
)

// Status is the execution state of a target within one invocation.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Outcome is how a target finished.
type Outcome struct {
	Status Status
	Kind   rules.Kind
	// Rebuilt is true if the recipe ran (or, in a dry run, would have run),
	// or for groups and aliases, if any member was rebuilt.
	Rebuilt bool
	// Fingerprint is the target's fingerprint after it finished.
	Fingerprint string
	// Reason explains the staleness decision.
	Reason string
	Err    error
}

// Store is the interface for managing the invocation-scoped state of targets.
//
// # Thread-Safety Requirements
//
// Implementations MUST be thread-safe: executors of different graphs claim
// and finish targets concurrently.
//
// # Typical Implementation
//
// See internal/inmemorystore for the reference implementation using
// sync.Map for fine-grained concurrent access without global lock contention.
type Store interface {
	// Claim registers interest in building target. Exactly one caller per
	// target receives owner == true and must eventually call Finish. Every
	// caller receives a channel that is closed once Finish has been called.
	Claim(ctx context.Context, target string) (owner bool, done <-chan struct{})

	// Finish records the outcome of a claimed target and wakes its waiters.
	// Finishing a target twice is an error.
	Finish(ctx context.Context, target string, out Outcome) error

	// SetStatus records an intermediate status such as StatusRunning.
	SetStatus(ctx context.Context, target string, status Status) error

	// GetStatus returns the current status, StatusPending if never set.
	GetStatus(ctx context.Context, target string) Status

	// GetOutcome returns the outcome of a finished target.
	GetOutcome(ctx context.Context, target string) (Outcome, bool)
}
