package hcl_adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/ohler55/ojg/jp"
	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/rules"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Scan output formats.
const (
	formatWords = "words"
	formatLines = "lines"
	formatJSON  = "json"
)

// process holds the attributes shared by command and scan blocks.
type process struct {
	program, args, dir, env hcl.Expression
}

func (p process) build(evalCtx *hcl.EvalContext) (*command.Cmd, error) {
	program, err := evalString(evalCtx, p.program)
	if err != nil {
		return nil, err
	}
	if program == "" {
		return nil, fmt.Errorf("%s: program is empty", p.program.Range())
	}
	args, err := evalStrings(evalCtx, p.args)
	if err != nil {
		return nil, err
	}
	dir, err := evalString(evalCtx, p.dir)
	if err != nil {
		return nil, err
	}
	env, err := evalStringMap(evalCtx, p.env)
	if err != nil {
		return nil, err
	}
	return command.New(program, args...).InDir(dir).WithEnv(envList(env)...), nil
}

// validateCommands checks the stdin sources of a command sequence.
func validateCommands(ctx context.Context, cmds []*CommandBlock) error {
	for i, c := range cmds {
		sources := 0
		for _, set := range []bool{
			isExprDefined(ctx, c.Stdin, "stdin"),
			isExprDefined(ctx, c.StdinJSON, "stdin_json"),
			isExprDefined(ctx, c.Select, "select"),
			c.Pipe,
		} {
			if set {
				sources++
			}
		}
		if sources > 1 {
			return fmt.Errorf("%s: only one of stdin, stdin_json, select and pipe may be set", c.DefRange)
		}
		if i == 0 && (c.Pipe || isExprDefined(ctx, c.Select, "select")) {
			return fmt.Errorf("%s: the first command has no previous output to read", c.DefRange)
		}
	}
	return nil
}

// recipe runs the command blocks in order, then the write blocks. It returns
// nil when there is nothing to run.
func recipe(base *hcl.EvalContext, cmds []*CommandBlock, writes []*WriteBlock) rules.Recipe {
	if len(cmds) == 0 && len(writes) == 0 {
		return nil
	}
	return func(ctx context.Context, job rules.Job) error {
		evalCtx := jobContext(base, job)

		var prev []byte
		for i, blk := range cmds {
			cmd, err := commandFor(ctx, evalCtx, blk, prev)
			if err != nil {
				return err
			}
			path := ""
			if isExprDefined(ctx, blk.Stdout, "stdout") {
				if path, err = evalString(evalCtx, blk.Stdout); err != nil {
					return err
				}
			}
			// Nothing reads the output of the last command but its file.
			if path != "" && i == len(cmds)-1 {
				if err := command.ToFile(ctx, job.Runner(), cmd, job.Workspace(), path); err != nil {
					return err
				}
				continue
			}

			res, err := job.Runner().Run(ctx, cmd)
			if err != nil {
				return err
			}
			prev = res.Stdout
			if path != "" {
				if err := job.WriteFile(path, res.Stdout); err != nil {
					return fmt.Errorf("writing output of %s to %s: %w", cmd.Program, path, err)
				}
			}
		}

		for _, w := range writes {
			path := job.Target()
			if isExprDefined(ctx, w.Path, "path") {
				p, err := evalString(evalCtx, w.Path)
				if err != nil {
					return err
				}
				path = p
			}
			content, err := evalString(evalCtx, w.Content)
			if err != nil {
				return err
			}
			if err := job.WriteFile(path, []byte(content)); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
		}
		return nil
	}
}

func commandFor(ctx context.Context, evalCtx *hcl.EvalContext, blk *CommandBlock, prev []byte) (*command.Cmd, error) {
	cmd, err := process{blk.Program, blk.Args, blk.Dir, blk.Env}.build(evalCtx)
	if err != nil {
		return nil, err
	}

	switch {
	case blk.Pipe:
		cmd.WithStdin(prev)
	case isExprDefined(ctx, blk.Stdin, "stdin"):
		s, err := evalString(evalCtx, blk.Stdin)
		if err != nil {
			return nil, err
		}
		cmd.WithStdin([]byte(s))
	case isExprDefined(ctx, blk.StdinJSON, "stdin_json"):
		val, diags := blk.StdinJSON.Value(evalCtx)
		if diags.HasErrors() {
			return nil, diags
		}
		data, err := ctyjson.SimpleJSONValue{Value: val}.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("%s: encoding stdin_json: %w", blk.StdinJSON.Range(), err)
		}
		cmd.WithStdin(data)
	case isExprDefined(ctx, blk.Select, "select"):
		queries, err := evalStringMap(evalCtx, blk.Select)
		if err != nil {
			return nil, err
		}
		data, err := command.Select(prev, queries)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", blk.Select.Range(), err)
		}
		cmd.WithStdin(data)
	}
	return cmd, nil
}

// scanFunc lists dependencies from the output of the scan block's program.
func scanFunc(base *hcl.EvalContext, blk *ScanBlock) rules.ScanFunc {
	return func(ctx context.Context, job rules.Job) ([]string, error) {
		evalCtx := jobContext(base, job)
		cmd, err := process{blk.Program, blk.Args, blk.Dir, blk.Env}.build(evalCtx)
		if err != nil {
			return nil, err
		}
		if isExprDefined(ctx, blk.Stdin, "stdin") {
			s, err := evalString(evalCtx, blk.Stdin)
			if err != nil {
				return nil, err
			}
			cmd.WithStdin([]byte(s))
		}
		names, err := scanOutput(ctx, job.Runner(), cmd, blk)
		if err != nil {
			return nil, err
		}
		if blk.Skip >= len(names) {
			return []string{}, nil
		}
		return names[blk.Skip:], nil
	}
}

func validateScan(blk *ScanBlock) error {
	switch blk.Format {
	case "", formatWords, formatLines, formatJSON:
	default:
		return fmt.Errorf("%s: unknown scan format %q", blk.DefRange, blk.Format)
	}
	if blk.Skip < 0 {
		return fmt.Errorf("%s: skip must not be negative", blk.DefRange)
	}
	if blk.Query != "" {
		if blk.Format != formatJSON {
			return fmt.Errorf("%s: query requires format \"json\"", blk.DefRange)
		}
		if _, err := jp.ParseString(blk.Query); err != nil {
			return fmt.Errorf("%s: invalid query %q: %w", blk.DefRange, blk.Query, err)
		}
	}
	return nil
}

// scanOutput runs the scan command and splits its output into names.
func scanOutput(ctx context.Context, r command.Runner, cmd *command.Cmd, blk *ScanBlock) ([]string, error) {
	switch blk.Format {
	case formatJSON:
		if blk.Query == "" {
			var names []string
			if err := command.JSON(ctx, r, cmd, &names); err != nil {
				return nil, err
			}
			return names, nil
		}
		found, err := command.Query(ctx, r, cmd, blk.Query)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(found))
		for _, v := range found {
			name, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("query %q of %s selected %v, not a string", blk.Query, cmd.Program, v)
			}
			names = append(names, name)
		}
		return names, nil
	case formatLines:
		out, err := command.Text(ctx, r, cmd)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, line := range strings.Split(out, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				names = append(names, line)
			}
		}
		return names, nil
	default:
		out, err := command.Text(ctx, r, cmd)
		if err != nil {
			return nil, err
		}
		return strings.Fields(out), nil
	}
}
