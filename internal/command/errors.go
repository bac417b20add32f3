package command

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrCommandFailed matches every *ExternalCommandFailed with errors.Is.
var ErrCommandFailed = errors.New("external command failed")

const tailLines = 20

// ExternalCommandFailed reports a process that exited non-zero or could not
// be started. ExitCode is -1 in the latter case and Err holds the cause.
type ExternalCommandFailed struct {
	Program  string
	Args     []string
	ExitCode int
	// Output is the tail of stderr, or of stdout when stderr was empty.
	Output string
	Err    error
}

func (e *ExternalCommandFailed) Error() string {
	var sb strings.Builder
	if e.ExitCode < 0 {
		fmt.Fprintf(&sb, "command %s could not be run", e.Program)
		if e.Err != nil {
			fmt.Fprintf(&sb, ": %v", e.Err)
		}
	} else {
		fmt.Fprintf(&sb, "command %s exited with code %d", e.Program, e.ExitCode)
	}
	if e.Output != "" {
		sb.WriteString(":\n")
		sb.WriteString(e.Output)
	}
	return sb.String()
}

func (e *ExternalCommandFailed) Is(target error) bool { return target == ErrCommandFailed }

func (e *ExternalCommandFailed) Unwrap() error { return e.Err }

func newFailure(c *Cmd, res *Result, cause error) *ExternalCommandFailed {
	out := res.Stderr
	if len(bytes.TrimSpace(out)) == 0 {
		out = res.Stdout
	}
	return &ExternalCommandFailed{
		Program:  c.Program,
		Args:     append([]string(nil), c.Args...),
		ExitCode: res.ExitCode,
		Output:   tail(out, tailLines),
		Err:      cause,
	}
}

// tail returns the last n lines of b.
func tail(b []byte, n int) string {
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
