package rules

import (
	"fmt"
	"regexp"
	"sort"
)

// Builder accumulates rules. It is not safe for concurrent use.
type Builder struct {
	exact    map[string]*Rule
	patterns []*Rule
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{exact: make(map[string]*Rule)}
}

// AddTarget registers an explicit file target.
func (b *Builder) AddTarget(name string, deps []Template, recipe Recipe, opts ...Option) error {
	if recipe == nil {
		return fmt.Errorf("%w: target %q has no recipe", ErrInvalidRule, name)
	}
	return b.addExact(&Rule{Kind: File, Name: name, Deps: deps, Recipe: recipe}, opts)
}

// AddVirtual registers a target that produces no file.
func (b *Builder) AddVirtual(name string, deps []Template, recipe Recipe, opts ...Option) error {
	if recipe == nil {
		return fmt.Errorf("%w: virtual target %q has no recipe", ErrInvalidRule, name)
	}
	return b.addExact(&Rule{Kind: Virtual, Name: name, Deps: deps, Recipe: recipe}, opts)
}

// AddAlways registers a target whose recipe runs on every invocation.
func (b *Builder) AddAlways(name string, deps []Template, recipe Recipe, opts ...Option) error {
	if recipe == nil {
		return fmt.Errorf("%w: always target %q has no recipe", ErrInvalidRule, name)
	}
	return b.addExact(&Rule{Kind: Always, Name: name, Deps: deps, Recipe: recipe}, opts)
}

// AddGroup registers a named set of targets.
func (b *Builder) AddGroup(name string, members []string, opts ...Option) error {
	return b.addExact(&Rule{Kind: Group, Name: name, Deps: Literals(members...)}, opts)
}

// AddAlias registers name as another name for target.
func (b *Builder) AddAlias(name, target string, opts ...Option) error {
	if target == "" {
		return fmt.Errorf("%w: alias %q has no target", ErrInvalidRule, name)
	}
	if target == name {
		return fmt.Errorf("%w: alias %q points at itself", ErrInvalidRule, name)
	}
	return b.addExact(&Rule{Kind: Alias, Name: name, Deps: Literals(target)}, opts)
}

// AddPattern registers a pattern rule producing file targets. The expression
// must match the whole name. Patterns are tried in registration order.
func (b *Builder) AddPattern(expr string, deps []Template, recipe Recipe, opts ...Option) error {
	if expr == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}
	if recipe == nil {
		return fmt.Errorf("%w: pattern %q has no recipe", ErrInvalidRule, expr)
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return fmt.Errorf("%w: pattern %q: %v", ErrInvalidRule, expr, err)
	}
	r := &Rule{Kind: File, Pattern: re, Deps: deps, Recipe: recipe}
	for _, opt := range opts {
		opt(r)
	}
	b.patterns = append(b.patterns, r)
	return nil
}

func (b *Builder) addExact(r *Rule, opts []Option) error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty %s name", ErrInvalidRule, r.Kind)
	}
	if _, ok := SplitDepsOf(r.Name); ok {
		return fmt.Errorf("%w: %q uses the reserved %q prefix", ErrInvalidRule, r.Name, DepsOfPrefix)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Scan != nil && !r.Kind.HasRecipe() {
		return fmt.Errorf("%w: %s %q cannot discover dependencies", ErrInvalidRule, r.Kind, r.Name)
	}
	if prev, ok := b.exact[r.Name]; ok {
		return fmt.Errorf("%w: %q registered as %s and %s", ErrAmbiguousRuleConflict, r.Name, prev, r)
	}
	b.exact[r.Name] = r
	return nil
}

// Build freezes the registered rules into a Table. The Builder may keep
// being used; later registrations do not affect the returned Table.
func (b *Builder) Build() *Table {
	exact := make(map[string]*Rule, len(b.exact))
	names := make([]string, 0, len(b.exact))
	for k, v := range b.exact {
		exact[k] = v
		names = append(names, k)
	}
	sort.Strings(names)
	return &Table{
		exact:    exact,
		names:    names,
		patterns: append([]*Rule(nil), b.patterns...),
	}
}
