package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Output runs c and returns its standard output.
func Output(ctx context.Context, r Runner, c *Cmd) ([]byte, error) {
	res, err := r.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// Text runs c and returns its standard output with surrounding whitespace removed.
func Text(ctx context.Context, r Runner, c *Cmd) (string, error) {
	out, err := Output(ctx, r, c)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// JSON runs c and decodes its standard output into v.
func JSON(ctx context.Context, r Runner, c *Cmd, v any) error {
	out, err := Output(ctx, r, c)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("decoding output of %s: %w", c.Program, err)
	}
	return nil
}

// Query runs c and evaluates a JSONPath expression against its JSON output.
func Query(ctx context.Context, r Runner, c *Cmd, path string) ([]any, error) {
	out, err := Output(ctx, r, c)
	if err != nil {
		return nil, err
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}
	doc, err := oj.Parse(out)
	if err != nil {
		return nil, fmt.Errorf("decoding output of %s: %w", c.Program, err)
	}
	return x.Get(doc), nil
}

// FileWriter replaces files atomically.
type FileWriter interface {
	WriteAtomic(name string, data []byte) error
}

// ToFile runs c and atomically writes its standard output to name.
func ToFile(ctx context.Context, r Runner, c *Cmd, w FileWriter, name string) error {
	out, err := Output(ctx, r, c)
	if err != nil {
		return err
	}
	return w.WriteAtomic(name, out)
}

// Select builds a JSON object from a JSON document: every key of queries is
// set to the first value its JSONPath expression selects. A query selecting
// nothing is an error.
func Select(doc []byte, queries map[string]string) ([]byte, error) {
	data, err := oj.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("decoding JSON input: %w", err)
	}
	out := make(map[string]any, len(queries))
	for key, path := range queries {
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath %q for %q: %w", path, key, err)
		}
		found := x.Get(data)
		if len(found) == 0 {
			return nil, fmt.Errorf("JSONPath %q for %q selected nothing", path, key)
		}
		out[key] = found[0]
	}
	return json.Marshal(out)
}
