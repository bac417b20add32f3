package hcl_adapter

import (
	"fmt"
	"path"

	"github.com/vk/bootforge/internal/workspace"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions returns the functions available to build files. The filesystem
// functions read the workspace, so their results count as inputs only when
// the files they read are listed as dependencies.
func functions(ws *workspace.Workspace) map[string]function.Function {
	return map[string]function.Function{
		"basename":   pathFunc(path.Base),
		"dirname":    pathFunc(path.Dir),
		"concat":     stdlib.ConcatFunc,
		"contains":   stdlib.ContainsFunc,
		"distinct":   stdlib.DistinctFunc,
		"element":    stdlib.ElementFunc,
		"file":       fileFunc(ws),
		"flatten":    stdlib.FlattenFunc,
		"format":     stdlib.FormatFunc,
		"formatlist": stdlib.FormatListFunc,
		"glob":       globFunc(ws),
		"join":       stdlib.JoinFunc,
		"jsondecode": stdlib.JSONDecodeFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
		"keys":       stdlib.KeysFunc,
		"length":     stdlib.LengthFunc,
		"listdir":    listdirFunc(ws),
		"lower":      stdlib.LowerFunc,
		"merge":      stdlib.MergeFunc,
		"regex":      stdlib.RegexFunc,
		"replace":    stdlib.ReplaceFunc,
		"sort":       stdlib.SortFunc,
		"split":      stdlib.SplitFunc,
		"trimprefix": stdlib.TrimPrefixFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"trimsuffix": stdlib.TrimSuffixFunc,
		"upper":      stdlib.UpperFunc,
		"values":     stdlib.ValuesFunc,
	}
}

func pathFunc(fn func(string) string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.StringVal(fn(args[0].AsString())), nil
		},
	})
}

// globFunc lists workspace files matching a shell pattern, sorted.
func globFunc(ws *workspace.Workspace) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "pattern", Type: cty.String}},
		Type:   function.StaticReturnType(cty.List(cty.String)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			names, err := ws.Glob(args[0].AsString())
			if err != nil {
				return cty.NilVal, fmt.Errorf("glob %q: %w", args[0].AsString(), err)
			}
			return stringList(names), nil
		},
	})
}

// listdirFunc lists the entry names of a workspace directory, sorted.
func listdirFunc(ws *workspace.Workspace) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "dir", Type: cty.String}},
		Type:   function.StaticReturnType(cty.List(cty.String)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			names, err := ws.ReadDir(args[0].AsString())
			if err != nil {
				return cty.NilVal, fmt.Errorf("listdir %q: %w", args[0].AsString(), err)
			}
			return stringList(names), nil
		},
	})
}

func fileFunc(ws *workspace.Workspace) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			data, err := ws.ReadFile(args[0].AsString())
			if err != nil {
				return cty.NilVal, fmt.Errorf("file %q: %w", args[0].AsString(), err)
			}
			return cty.StringVal(string(data)), nil
		},
	})
}
