package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vk/bootforge/internal/ctxlog"
	"golang.org/x/sync/semaphore"
)

// Runner executes commands. A non-zero exit is returned as
// *ExternalCommandFailed together with the captured Result.
type Runner interface {
	Run(ctx context.Context, c *Cmd) (*Result, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// BaseDir is the working directory for commands without an absolute Dir.
	BaseDir string
}

func (r *ExecRunner) Run(ctx context.Context, c *Cmd) (*Result, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	cmd.Dir = r.dir(c.Dir)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running command.", "command", c.String(), "dir", cmd.Dir)
	err := cmd.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, newFailure(c, res, nil)
		}
		res.ExitCode = -1
		return res, newFailure(c, res, err)
	}
	return res, nil
}

func (r *ExecRunner) dir(d string) string {
	switch {
	case d == "":
		return r.BaseDir
	case filepath.IsAbs(d) || r.BaseDir == "":
		return d
	default:
		return filepath.Join(r.BaseDir, d)
	}
}

// Limited wraps a Runner so that at most n commands run at the same time.
type Limited struct {
	runner Runner
	sem    *semaphore.Weighted
}

// NewLimited caps r at n concurrent commands. n < 1 is treated as 1.
func NewLimited(r Runner, n int) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{runner: r, sem: semaphore.NewWeighted(int64(n))}
}

func (l *Limited) Run(ctx context.Context, c *Cmd) (*Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.runner.Run(ctx, c)
}
