package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/resultstore"
	"github.com/vk/bootforge/internal/workspace"
)

// DepsOfPrefix marks the auxiliary virtual target that holds the discovered
// dependencies of a dynamic target.
const DepsOfPrefix = "deps_of:"

// DepsOf returns the name of the discovery target for name.
func DepsOf(name string) string { return DepsOfPrefix + name }

// SplitDepsOf reports whether name is a discovery target and returns the
// target it discovers dependencies for.
func SplitDepsOf(name string) (string, bool) {
	base, ok := strings.CutPrefix(name, DepsOfPrefix)
	return base, ok && base != ""
}

// Job is the view of a running target handed to its recipe.
type Job interface {
	// Target is the name being built.
	Target() string
	// Deps are the resolved dependency names, in declaration order.
	Deps() []string
	// Match holds the captures of the rule that produced the target.
	Match() *Match
	Runner() command.Runner
	Workspace() *workspace.Workspace
	// WriteFile atomically replaces a file in the workspace.
	WriteFile(name string, data []byte) error
	// GetResult reads the last recorded result of a target without building it.
	GetResult(ctx context.Context, name string) (*resultstore.Entry, bool, error)
	// Update builds a target now, at most once per invocation, and returns
	// its recorded result. Updated targets are not dependencies of the caller.
	Update(ctx context.Context, name string) (*resultstore.Entry, error)
}

// Recipe produces a target. For File targets it must leave the file in place.
type Recipe func(ctx context.Context, job Job) error

// ScanFunc lists the dependencies of a dynamic target. It runs as the recipe
// of the target's deps_of: companion.
type ScanFunc func(ctx context.Context, job Job) ([]string, error)

// Rule describes how a set of names is built.
type Rule struct {
	Kind    Kind
	Name    string
	Pattern *regexp.Regexp
	Deps    []Template
	Recipe  Recipe
	Scan    ScanFunc
	// Refresh lists targets force-updated before Scan runs. They are not
	// recorded as dependencies.
	Refresh []string
	Origin  string

	discovers *Rule
}

// IsPattern reports whether the rule matches names by regular expression.
func (r *Rule) IsPattern() bool { return r.Pattern != nil }

// Dynamic reports whether the rule discovers part of its dependencies at build time.
func (r *Rule) Dynamic() bool { return r.Scan != nil }

// Discovers returns the dynamic rule whose dependencies this rule scans for,
// or nil if r is not a deps_of: companion.
func (r *Rule) Discovers() *Rule { return r.discovers }

func (r *Rule) String() string {
	var s string
	if r.IsPattern() {
		s = fmt.Sprintf("%s pattern %q", r.Kind, r.Pattern.String())
	} else {
		s = fmt.Sprintf("%s %q", r.Kind, r.Name)
	}
	if r.Origin != "" {
		s += " (" + r.Origin + ")"
	}
	return s
}

// DiscoveryRule synthesizes the virtual deps_of: companion of a dynamic rule
// for the concrete target name.
func DiscoveryRule(base *Rule, name string) *Rule {
	return &Rule{
		Kind:      Virtual,
		Name:      DepsOf(name),
		Scan:      base.Scan,
		Refresh:   base.Refresh,
		Origin:    base.Origin,
		discovers: base,
	}
}

// Option customizes a rule at registration.
type Option func(*Rule)

// WithScan marks the rule as dynamic. scan runs as the recipe of the
// deps_of: companion; refresh targets are updated right before it.
func WithScan(scan ScanFunc, refresh ...string) Option {
	return func(r *Rule) {
		r.Scan = scan
		r.Refresh = append([]string(nil), refresh...)
	}
}

// WithOrigin records where the rule was declared, for error messages.
func WithOrigin(origin string) Option {
	return func(r *Rule) { r.Origin = origin }
}
