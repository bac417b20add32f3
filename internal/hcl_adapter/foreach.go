package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// instance is one rule produced by a target block.
type instance struct {
	name    string
	evalCtx *hcl.EvalContext
}

// instances expands a target block over its for_each collection. A block
// without for_each is a single instance. With for_each, each.key and
// each.value are in scope for every expression of the block, once per
// element; lists and sets use the element as both key and value. The name
// attribute, when set, names the instance instead of the block label.
func instances(ctx context.Context, evalCtx *hcl.EvalContext, t *TargetBlock) ([]instance, error) {
	if !isExprDefined(ctx, t.ForEach, "for_each") {
		name, err := t.instanceName(ctx, evalCtx)
		if err != nil {
			return nil, err
		}
		return []instance{{name: name, evalCtx: evalCtx}}, nil
	}

	coll, diags := t.ForEach.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: for_each: %w", t.DefRange, diags)
	}
	if coll.IsNull() || !coll.IsWhollyKnown() {
		return nil, fmt.Errorf("%s: for_each must be a known collection", t.DefRange)
	}
	ty := coll.Type()
	byKey := ty.IsMapType() || ty.IsObjectType()
	if !byKey && !ty.IsListType() && !ty.IsSetType() && !ty.IsTupleType() {
		return nil, fmt.Errorf("%s: for_each must be a list, set or map, got %s", t.DefRange, ty.FriendlyName())
	}

	out := make([]instance, 0, coll.LengthInt())
	for it := coll.ElementIterator(); it.Next(); {
		k, v := it.Element()
		if !byKey {
			k = v
		}
		key, err := convert.Convert(k, cty.String)
		if err != nil {
			return nil, fmt.Errorf("%s: for_each keys must be strings: %w", t.DefRange, err)
		}
		child := evalCtx.NewChild()
		child.Variables = map[string]cty.Value{
			"each": cty.ObjectVal(map[string]cty.Value{"key": key, "value": v}),
		}
		name, err := t.instanceName(ctx, child)
		if err != nil {
			return nil, err
		}
		out = append(out, instance{name: name, evalCtx: child})
	}
	return out, nil
}

func (t *TargetBlock) instanceName(ctx context.Context, evalCtx *hcl.EvalContext) (string, error) {
	if !isExprDefined(ctx, t.NameExpr, "name") {
		return t.Name, nil
	}
	name, err := evalString(evalCtx, t.NameExpr)
	if err != nil {
		return "", fmt.Errorf("%s: name: %w", t.DefRange, err)
	}
	if name == "" {
		return "", fmt.Errorf("%s: name is empty", t.DefRange)
	}
	return name, nil
}
