package rules

import (
	"fmt"
	"strings"
)

// Template produces one dependency name for a concrete match.
type Template interface {
	Expand(m *Match) (string, error)
}

// ListTemplate is a Template that may produce any number of names. Expand
// uses ExpandAll when a template implements it.
type ListTemplate interface {
	Template
	ExpandAll(m *Match) ([]string, error)
}

// Literal is a fixed dependency name.
type Literal string

func (l Literal) Expand(*Match) (string, error) { return string(l), nil }

// Capture expands to a positional capture group of the match.
type Capture int

func (c Capture) Expand(m *Match) (string, error) { return m.Group(int(c)) }

// Named expands to a named capture group of the match.
type Named string

func (n Named) Expand(m *Match) (string, error) { return m.Lookup(string(n)) }

// TemplateFunc adapts an ordinary function to the Template interface.
type TemplateFunc func(m *Match) (string, error)

func (f TemplateFunc) Expand(m *Match) (string, error) { return f(m) }

type concat []Template

func (c concat) Expand(m *Match) (string, error) {
	var sb strings.Builder
	for _, part := range c {
		s, err := part.Expand(m)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// Concat joins the expansion of several templates.
//
//	rules.Concat(rules.Literal("ca/"), rules.Capture(1), rules.Literal(".pem"))
func Concat(parts ...Template) Template {
	return concat(parts)
}

// Literals turns plain names into templates.
func Literals(names ...string) []Template {
	out := make([]Template, len(names))
	for i, n := range names {
		out[i] = Literal(n)
	}
	return out
}

// Expand evaluates every template against m. Empty expansions are rejected.
func Expand(templates []Template, m *Match) ([]string, error) {
	out := make([]string, 0, len(templates))
	for i, t := range templates {
		var names []string
		if lt, ok := t.(ListTemplate); ok {
			all, err := lt.ExpandAll(m)
			if err != nil {
				return nil, fmt.Errorf("dependency template %d: %w", i, err)
			}
			names = all
		} else {
			s, err := t.Expand(m)
			if err != nil {
				return nil, fmt.Errorf("dependency template %d: %w", i, err)
			}
			names = []string{s}
		}
		for _, s := range names {
			if s == "" {
				return nil, fmt.Errorf("dependency template %d expanded to an empty name", i)
			}
			out = append(out, s)
		}
	}
	return out, nil
}
