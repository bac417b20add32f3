package rules

import "fmt"

// Table is the immutable, concurrency-safe result of Builder.Build.
type Table struct {
	exact    map[string]*Rule
	names    []string
	patterns []*Rule
}

// Lookup finds the rule responsible for name. Exact registrations take
// precedence over patterns; among patterns the first registered full match
// wins.
func (t *Table) Lookup(name string) (*Rule, *Match, error) {
	if r, ok := t.exact[name]; ok {
		return r, exactMatch(name), nil
	}
	for _, r := range t.patterns {
		groups := r.Pattern.FindStringSubmatch(name)
		if groups == nil {
			continue
		}
		m := &Match{Name: name, Groups: groups, Named: make(map[string]string)}
		for i, sub := range r.Pattern.SubexpNames() {
			if sub != "" {
				m.Named[sub] = groups[i]
			}
		}
		return r, m, nil
	}
	return nil, nil, fmt.Errorf("%q: %w", name, ErrTargetNotFound)
}

// Names returns the exact rule names in sorted order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Patterns returns the pattern rules in registration order.
func (t *Table) Patterns() []*Rule {
	return append([]*Rule(nil), t.patterns...)
}

// Len is the number of registered rules.
func (t *Table) Len() int { return len(t.exact) + len(t.patterns) }
