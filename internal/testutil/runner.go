package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vk/bootforge/internal/command"
)

// RunFunc answers a command for a FakeRunner.
type RunFunc func(ctx context.Context, c *command.Cmd) (*command.Result, error)

// FakeRunner is a command.Runner that records invocations instead of
// starting processes. Programs without a handler succeed with empty output.
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]RunFunc
	calls    []Invocation
	// Delay is slept before every command, to make overlaps observable.
	Delay time.Duration
}

var _ command.Runner = (*FakeRunner)(nil)

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]RunFunc)}
}

// Handle registers fn for program and returns f for chaining.
func (f *FakeRunner) Handle(program string, fn RunFunc) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[program] = fn
	return f
}

func (f *FakeRunner) Run(ctx context.Context, c *command.Cmd) (*command.Result, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	inv := Invocation{
		Program: c.Program,
		Args:    slices.Clone(c.Args),
		Dir:     c.Dir,
		Stdin:   slices.Clone(c.Stdin),
		Start:   time.Now(),
	}
	f.mu.Lock()
	fn := f.handlers[c.Program]
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	res := &command.Result{}
	var err error
	if fn != nil {
		res, err = fn(ctx, c)
	}
	inv.End = time.Now()

	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	return res, err
}

// Calls returns every recorded invocation in completion order.
func (f *FakeRunner) Calls() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Count returns how many times program was run.
func (f *FakeRunner) Count(program string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Program == program {
			n++
		}
	}
	return n
}

// Reset forgets the recorded invocations.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Stdout answers every command with out.
func Stdout(out string) RunFunc {
	return func(context.Context, *command.Cmd) (*command.Result, error) {
		return &command.Result{Stdout: []byte(out)}, nil
	}
}

// Echo answers with the command's arguments joined by spaces.
func Echo() RunFunc {
	return func(_ context.Context, c *command.Cmd) (*command.Result, error) {
		return &command.Result{Stdout: []byte(strings.Join(c.Args, " "))}, nil
	}
}

// Fail answers with a non-zero exit and stderr.
func Fail(code int, stderr string) RunFunc {
	return func(_ context.Context, c *command.Cmd) (*command.Result, error) {
		res := &command.Result{Stderr: []byte(stderr), ExitCode: code}
		return res, &command.ExternalCommandFailed{
			Program:  c.Program,
			Args:     slices.Clone(c.Args),
			ExitCode: code,
			Output:   stderr,
		}
	}
}
