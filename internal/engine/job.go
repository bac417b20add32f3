package engine

import (
	"context"
	"errors"

	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/ctxlog"
	"github.com/vk/bootforge/internal/dag"
	"github.com/vk/bootforge/internal/resultstore"
	"github.com/vk/bootforge/internal/rules"
	"github.com/vk/bootforge/internal/workspace"
)

// job is the rules.Job handed to recipes and scans.
type job struct {
	session *Session
	node    *dag.Node
	match   *rules.Match
	target  string
	deps    []string
}

var _ rules.Job = (*job)(nil)

func newJob(s *Session, n *dag.Node, m *rules.Match, target string, deps []string) *job {
	return &job{session: s, node: n, match: m, target: target, deps: deps}
}

func (j *job) Target() string                  { return j.target }
func (j *job) Deps() []string                  { return append([]string(nil), j.deps...) }
func (j *job) Match() *rules.Match             { return j.match }
func (j *job) Runner() command.Runner          { return j.session.engine.runner }
func (j *job) Workspace() *workspace.Workspace { return j.session.engine.ws }

func (j *job) WriteFile(name string, data []byte) error {
	return j.session.engine.ws.WriteAtomic(name, data)
}

// GetResult reads the recorded result of name. The running node's own entry
// is read without waiting, since its lock is held by this build.
func (j *job) GetResult(ctx context.Context, name string) (*resultstore.Entry, bool, error) {
	results := j.session.engine.results
	var (
		entry *resultstore.Entry
		ok    bool
		err   error
	)
	if name == j.node.Name {
		entry, ok, err = results.Unlocked().Get(ctx, name)
	} else {
		entry, ok, err = results.Get(ctx, name)
	}
	if errors.Is(err, resultstore.ErrRegistryCorrupt) {
		ctxlog.FromContext(ctx).Warn("Ignoring unreadable registry entry.", "target", name, "error", err)
		return nil, false, nil
	}
	return entry, ok, err
}

// Update builds name within the current invocation and returns its recorded
// result, which is nil for targets that record nothing (sources, groups).
func (j *job) Update(ctx context.Context, name string) (*resultstore.Entry, error) {
	if _, err := j.session.Build(ctx, name); err != nil {
		return nil, err
	}
	entry, ok, err := j.GetResult(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return entry, nil
}
