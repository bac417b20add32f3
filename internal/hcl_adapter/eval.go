package hcl_adapter

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bootforge/internal/rules"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

func stringList(ss []string) cty.Value {
	if len(ss) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(ss))
	for i, s := range ss {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}

func stringMap(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.MapVal(vals)
}

// matchContext exposes the captures of m as target, match and named.
func matchContext(parent *hcl.EvalContext, m *rules.Match) *hcl.EvalContext {
	child := parent.NewChild()
	child.Variables = map[string]cty.Value{
		"target": cty.StringVal(m.Name),
		"match":  stringList(m.Groups),
		"named":  stringMap(m.Named),
	}
	return child
}

// jobContext is the scope of recipe and scan expressions.
func jobContext(parent *hcl.EvalContext, job rules.Job) *hcl.EvalContext {
	m := job.Match()
	if m == nil {
		m = &rules.Match{Name: job.Target(), Groups: []string{job.Target()}}
	}
	child := matchContext(parent, m)
	child.Variables["target"] = cty.StringVal(job.Target())
	child.Variables["deps"] = stringList(job.Deps())
	return child
}

func evalValue(evalCtx *hcl.EvalContext, expr hcl.Expression, want cty.Type) (cty.Value, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	if !val.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("%s: value is not known", expr.Range())
	}
	if val.IsNull() {
		return val, nil
	}
	val, err := convert.Convert(val, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("%s: %w", expr.Range(), err)
	}
	return val, nil
}

func evalString(evalCtx *hcl.EvalContext, expr hcl.Expression) (string, error) {
	val, err := evalValue(evalCtx, expr, cty.String)
	if err != nil || val.IsNull() {
		return "", err
	}
	return val.AsString(), nil
}

func evalStrings(evalCtx *hcl.EvalContext, expr hcl.Expression) ([]string, error) {
	val, err := evalValue(evalCtx, expr, cty.List(cty.String))
	if err != nil || val.IsNull() {
		return nil, err
	}
	var out []string
	if err := gocty.FromCtyValue(val, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", expr.Range(), err)
	}
	return out, nil
}

func evalStringMap(evalCtx *hcl.EvalContext, expr hcl.Expression) (map[string]string, error) {
	val, err := evalValue(evalCtx, expr, cty.Map(cty.String))
	if err != nil || val.IsNull() {
		return nil, err
	}
	var out map[string]string
	if err := gocty.FromCtyValue(val, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", expr.Range(), err)
	}
	return out, nil
}

// envList renders env as KEY=VALUE pairs in key order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + env[k]
	}
	return out
}
