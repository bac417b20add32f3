package rules

import "fmt"

// Match is the result of resolving a target name against a rule. For exact
// rules Groups holds only the full name.
type Match struct {
	Name   string
	Groups []string
	Named  map[string]string
}

// Group returns the i-th positional capture. Group(0) is the whole name.
func (m *Match) Group(i int) (string, error) {
	if m == nil || i < 0 || i >= len(m.Groups) {
		return "", fmt.Errorf("capture group %d is not available", i)
	}
	return m.Groups[i], nil
}

// Lookup returns the named capture with the given name.
func (m *Match) Lookup(name string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("named capture %q is not available", name)
	}
	v, ok := m.Named[name]
	if !ok {
		return "", fmt.Errorf("named capture %q is not available", name)
	}
	return v, nil
}

func exactMatch(name string) *Match {
	return &Match{Name: name, Groups: []string{name}, Named: map[string]string{}}
}
