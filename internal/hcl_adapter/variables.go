package hcl_adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/bootforge/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// variables evaluates the declared variables and applies overrides. The
// result is the value of var in every other expression.
func (l *Loader) variables(ctx context.Context, decls []*Variable) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	evalCtx := &hcl.EvalContext{Functions: l.functions}

	vals := make(map[string]cty.Value, len(decls))
	declared := make(map[string]*Variable, len(decls))
	for _, v := range decls {
		if prev, ok := declared[v.Name]; ok {
			return cty.NilVal, fmt.Errorf("%s: variable %q already declared at %s", v.DefRange, v.Name, prev.DefRange)
		}
		declared[v.Name] = v

		val := cty.NullVal(cty.DynamicPseudoType)
		if isExprDefined(ctx, v.Default, "default") {
			var diags hcl.Diagnostics
			val, diags = v.Default.Value(evalCtx)
			if diags.HasErrors() {
				return cty.NilVal, fmt.Errorf("invalid default for variable %q: %w", v.Name, diags)
			}
		}
		vals[v.Name] = val
	}

	names := make([]string, 0, len(l.overrides))
	for name := range l.overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := declared[name]; !ok {
			return cty.NilVal, fmt.Errorf("variable %q is set but not declared", name)
		}
		val, err := toValue(l.overrides[name])
		if err != nil {
			return cty.NilVal, fmt.Errorf("variable %q: %w", name, err)
		}
		if def := vals[name]; !def.IsNull() && def.Type().IsPrimitiveType() {
			val, err = convert.Convert(val, def.Type())
			if err != nil {
				return cty.NilVal, fmt.Errorf("variable %q: %w", name, err)
			}
		}
		logger.Debug("Variable overridden.", "variable", name)
		vals[name] = val
	}

	for name, val := range vals {
		if val.IsNull() {
			return cty.NilVal, fmt.Errorf("variable %q has no value", name)
		}
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(vals), nil
}

// toValue converts a plain Go value, as read from YAML or flags, to cty.
func toValue(v any) (cty.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(data)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(data, ty)
}
