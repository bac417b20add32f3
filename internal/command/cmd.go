package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cmd is a single external process invocation.
type Cmd struct {
	Program string
	Args    []string
	// Dir is resolved against the runner's base directory when relative.
	Dir   string
	Env   []string
	Stdin []byte

	err error
}

// New returns a Cmd for program with args.
func New(program string, args ...string) *Cmd {
	return &Cmd{Program: program, Args: args}
}

// InDir sets the working directory.
func (c *Cmd) InDir(dir string) *Cmd {
	c.Dir = dir
	return c
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func (c *Cmd) WithEnv(kv ...string) *Cmd {
	c.Env = append(c.Env, kv...)
	return c
}

// WithStdin feeds data to the process on standard input.
func (c *Cmd) WithStdin(data []byte) *Cmd {
	c.Stdin = data
	return c
}

// WithStdinJSON feeds the JSON encoding of v on standard input. An encoding
// error is reported when the command is run.
func (c *Cmd) WithStdinJSON(v any) *Cmd {
	data, err := json.Marshal(v)
	if err != nil {
		c.err = fmt.Errorf("encoding stdin for %s: %w", c.Program, err)
		return c
	}
	c.Stdin = data
	return c
}

// Err returns the first error recorded while building the command.
func (c *Cmd) Err() error { return c.err }

func (c *Cmd) String() string {
	parts := append([]string{c.Program}, c.Args...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\n\"'") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}

// Result is what a finished process produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}
