package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bootforge/internal/rules"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// exprTemplate is a dependency template backed by an HCL expression. It is
// evaluated once per matched name with target, match and named in scope.
// The expression may yield a name or a list of names; nested lists are
// flattened.
type exprTemplate struct {
	expr hcl.Expression
	base *hcl.EvalContext
}

var _ rules.ListTemplate = exprTemplate{}

func (t exprTemplate) Expand(m *rules.Match) (string, error) {
	names, err := t.ExpandAll(m)
	if err != nil {
		return "", err
	}
	if len(names) != 1 {
		return "", fmt.Errorf("%s: expected one name, got %d", t.expr.Range(), len(names))
	}
	return names[0], nil
}

func (t exprTemplate) ExpandAll(m *rules.Match) ([]string, error) {
	val, diags := t.expr.Value(matchContext(t.base, m))
	if diags.HasErrors() {
		return nil, diags
	}
	return flattenNames(t.expr, val)
}

func flattenNames(expr hcl.Expression, val cty.Value) ([]string, error) {
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("%s: value is not known", expr.Range())
	}
	if val.IsNull() {
		return nil, fmt.Errorf("%s: dependency is null", expr.Range())
	}
	ty := val.Type()
	if ty.IsListType() || ty.IsSetType() || ty.IsTupleType() {
		var out []string
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			names, err := flattenNames(expr, v)
			if err != nil {
				return nil, err
			}
			out = append(out, names...)
		}
		return out, nil
	}
	s, err := convert.Convert(val, cty.String)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expr.Range(), err)
	}
	return []string{s.AsString()}, nil
}

// patternDeps turns the deps of a pattern into templates. Each element of a
// list literal becomes one template; any other expression is a single
// template evaluated to a list per match.
func patternDeps(ctx context.Context, base *hcl.EvalContext, expr hcl.Expression) []rules.Template {
	if !isExprDefined(ctx, expr, "deps") {
		return nil
	}
	elems, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return []rules.Template{exprTemplate{expr: expr, base: base}}
	}
	out := make([]rules.Template, len(elems))
	for i, e := range elems {
		out[i] = exprTemplate{expr: e, base: base}
	}
	return out
}

// targetDeps evaluates the deps of an exact target once, at load time.
func targetDeps(ctx context.Context, base *hcl.EvalContext, expr hcl.Expression, name string) ([]rules.Template, error) {
	if !isExprDefined(ctx, expr, "deps") {
		return nil, nil
	}
	m := &rules.Match{Name: name, Groups: []string{name}}
	deps, err := evalStrings(matchContext(base, m), expr)
	if err != nil {
		return nil, fmt.Errorf("deps of %q: %w", name, err)
	}
	return rules.Literals(deps...), nil
}
