package integration_tests

import (
	"fmt"
	"strings"
	"testing"

	"github.com/vk/bootforge/internal/testutil"
)

// stepHCL declares one "step" target per name, each running program "step"
// with its own name as the only argument.
func stepHCL(defaultMembers []string, targets map[string][]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "group \"default\" { members = %s }\n", hclList(defaultMembers))
	for name, deps := range targets {
		fmt.Fprintf(&sb, `
virtual %q {
	deps = %s
	command {
		program = "step"
		args    = [target]
	}
}
`, name, hclList(deps))
	}
	return sb.String()
}

func hclList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// invocations indexes the recorded calls by their first argument.
func invocations(t *testing.T, runner *testutil.FakeRunner) map[string]testutil.Invocation {
	t.Helper()
	out := make(map[string]testutil.Invocation)
	for _, c := range runner.Calls() {
		if len(c.Args) > 0 {
			out[c.Args[0]] = c
		}
	}
	return out
}

// maxOverlap is the largest number of calls running at the same instant.
func maxOverlap(calls []testutil.Invocation) int {
	best := 0
	for _, a := range calls {
		n := 0
		for _, b := range calls {
			if !b.Start.After(a.Start) && b.End.After(a.Start) {
				n++
			}
		}
		best = max(best, n)
	}
	return best
}
