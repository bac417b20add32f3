package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/bootforge/internal/config"
	"github.com/vk/bootforge/internal/ctxlog"
	"github.com/vk/bootforge/internal/rules"
	"github.com/vk/bootforge/internal/workspace"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Loader is the HCL implementation of the config.Loader interface.
type Loader struct {
	overrides map[string]any
	functions map[string]function.Function
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates an HCL build-file loader. Filesystem functions read ws;
// overrides replace variable defaults.
func NewLoader(ws *workspace.Workspace, overrides map[string]any) *Loader {
	return &Loader{overrides: overrides, functions: functions(ws)}
}

// Load parses every .hcl file under paths and registers its blocks with b.
// Patterns keep their declaration order, files are read in walk order.
func (l *Loader) Load(ctx context.Context, b *rules.Builder, paths ...string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return err
	}
	if len(hclFiles) == 0 {
		return fmt.Errorf("no .hcl build files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	bodies := make([]hcl.Body, 0, len(hclFiles))
	var decls []*Variable
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		var root variablesRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return fmt.Errorf("failed to decode variables in %s: %w", file, diags)
		}
		decls = append(decls, root.Variables...)
		bodies = append(bodies, hclFile.Body)
	}

	vars, err := l.variables(ctx, decls)
	if err != nil {
		return err
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": vars},
		Functions: l.functions,
	}

	count := 0
	for i, body := range bodies {
		var root fileRoot
		if diags := gohcl.DecodeBody(body, evalCtx, &root); diags.HasErrors() {
			return fmt.Errorf("failed to decode HCL file %s: %w", hclFiles[i], diags)
		}
		n, err := l.register(ctx, b, evalCtx, &root)
		if err != nil {
			return err
		}
		count += n
	}

	logger.Debug("HCL loading complete.", "files", len(hclFiles), "variables", len(decls), "rules", count)
	return nil
}

// register adds the rules of one decoded file to b.
func (l *Loader) register(ctx context.Context, b *rules.Builder, evalCtx *hcl.EvalContext, root *fileRoot) (int, error) {
	count := 0
	for _, g := range root.Groups {
		if err := b.AddGroup(g.Name, g.Members, rules.WithOrigin(g.DefRange.String())); err != nil {
			return 0, err
		}
		count++
	}
	for _, a := range root.Aliases {
		if err := b.AddAlias(a.Name, a.Target, rules.WithOrigin(a.DefRange.String())); err != nil {
			return 0, err
		}
		count++
	}

	kinds := []struct {
		blocks []*TargetBlock
		add    func(string, []rules.Template, rules.Recipe, ...rules.Option) error
	}{
		{root.Targets, b.AddTarget},
		{root.Virtuals, b.AddVirtual},
		{root.Always, b.AddAlways},
	}
	for _, k := range kinds {
		for _, t := range k.blocks {
			insts, err := instances(ctx, evalCtx, t)
			if err != nil {
				return 0, err
			}
			for _, inst := range insts {
				ctx, logger := ctxlog.With(ctx, "target", inst.name)
				logger.Debug("Translating HCL block into a rule.")
				deps, err := targetDeps(ctx, inst.evalCtx, t.Deps, inst.name)
				if err != nil {
					return 0, fmt.Errorf("%s: %w", t.DefRange, err)
				}
				opts, err := ruleOptions(ctx, inst.evalCtx, t.DefRange, t.Scan, t.Refresh, t.Commands)
				if err != nil {
					return 0, err
				}
				if err := k.add(inst.name, deps, recipe(inst.evalCtx, t.Commands, t.Writes), opts...); err != nil {
					return 0, err
				}
				count++
			}
		}
	}

	for _, p := range root.Patterns {
		ctx, logger := ctxlog.With(ctx, "pattern", p.Name)
		logger.Debug("Translating HCL pattern into a rule.", "regex", p.Regex)
		deps := patternDeps(ctx, evalCtx, p.Deps)
		opts, err := ruleOptions(ctx, evalCtx, p.DefRange, p.Scan, p.Refresh, p.Commands)
		if err != nil {
			return 0, err
		}
		if err := b.AddPattern(p.Regex, deps, recipe(evalCtx, p.Commands, p.Writes), opts...); err != nil {
			return 0, fmt.Errorf("%s: %w", p.DefRange, err)
		}
		count++
	}
	return count, nil
}

func ruleOptions(ctx context.Context, evalCtx *hcl.EvalContext, def hcl.Range, scan *ScanBlock, refresh []string, cmds []*CommandBlock) ([]rules.Option, error) {
	if err := validateCommands(ctx, cmds); err != nil {
		return nil, err
	}
	opts := []rules.Option{rules.WithOrigin(def.String())}
	if scan == nil {
		if len(refresh) > 0 {
			return nil, fmt.Errorf("%s: refresh requires a scan block", def)
		}
		return opts, nil
	}
	if err := validateScan(scan); err != nil {
		return nil, err
	}
	return append(opts, rules.WithScan(scanFunc(evalCtx, scan), refresh...)), nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && p != path && strings.HasPrefix(info.Name(), ".") {
					return filepath.SkipDir
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					if _, wasSeen := seen[p]; !wasSeen {
						allFiles = append(allFiles, p)
						seen[p] = struct{}{}
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			if _, wasSeen := seen[path]; !wasSeen {
				allFiles = append(allFiles, path)
				seen[path] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
