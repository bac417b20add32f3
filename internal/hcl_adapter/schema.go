package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode all top-level blocks of a build file.
type fileRoot struct {
	Variables []*Variable     `hcl:"variable,block"`
	Targets   []*TargetBlock  `hcl:"target,block"`
	Virtuals  []*TargetBlock  `hcl:"virtual,block"`
	Always    []*TargetBlock  `hcl:"always,block"`
	Patterns  []*PatternBlock `hcl:"pattern,block"`
	Groups    []*GroupBlock   `hcl:"group,block"`
	Aliases   []*AliasBlock   `hcl:"alias,block"`
}

// variablesRoot is decoded first so that variables are known before any
// other block is evaluated.
type variablesRoot struct {
	Variables []*Variable `hcl:"variable,block"`
	Remain    hcl.Body    `hcl:",remain"`
}

// Variable declares a value available to every block as var.<name>.
type Variable struct {
	Name        string         `hcl:"name,label"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description *string        `hcl:"description,optional"`
	DefRange    hcl.Range      `hcl:",def_range"`
}

// TargetBlock maps the target, virtual and always blocks.
type TargetBlock struct {
	Name     string          `hcl:"name,label"`
	ForEach  hcl.Expression  `hcl:"for_each,optional"`
	NameExpr hcl.Expression  `hcl:"name,optional"`
	Deps     hcl.Expression  `hcl:"deps,optional"`
	Refresh  []string        `hcl:"refresh,optional"`
	Scan     *ScanBlock      `hcl:"scan,block"`
	Commands []*CommandBlock `hcl:"command,block"`
	Writes   []*WriteBlock   `hcl:"write,block"`
	DefRange hcl.Range       `hcl:",def_range"`
}

// PatternBlock declares a rule for every name its regex matches.
type PatternBlock struct {
	Name     string          `hcl:"name,label"`
	Regex    string          `hcl:"regex"`
	Deps     hcl.Expression  `hcl:"deps,optional"`
	Refresh  []string        `hcl:"refresh,optional"`
	Scan     *ScanBlock      `hcl:"scan,block"`
	Commands []*CommandBlock `hcl:"command,block"`
	Writes   []*WriteBlock   `hcl:"write,block"`
	DefRange hcl.Range       `hcl:",def_range"`
}

type GroupBlock struct {
	Name     string    `hcl:"name,label"`
	Members  []string  `hcl:"members"`
	DefRange hcl.Range `hcl:",def_range"`
}

type AliasBlock struct {
	Name     string    `hcl:"name,label"`
	Target   string    `hcl:"target"`
	DefRange hcl.Range `hcl:",def_range"`
}

// CommandBlock runs one external program. Expressions are evaluated when the
// recipe runs, with target, deps, match and named in scope.
type CommandBlock struct {
	Program   hcl.Expression `hcl:"program"`
	Args      hcl.Expression `hcl:"args,optional"`
	Dir       hcl.Expression `hcl:"dir,optional"`
	Env       hcl.Expression `hcl:"env,optional"`
	Stdin     hcl.Expression `hcl:"stdin,optional"`
	StdinJSON hcl.Expression `hcl:"stdin_json,optional"`
	Select    hcl.Expression `hcl:"select,optional"`
	Pipe      bool           `hcl:"pipe,optional"`
	Stdout    hcl.Expression `hcl:"stdout,optional"`
	DefRange  hcl.Range      `hcl:",def_range"`
}

// ScanBlock lists the dependencies of a dynamic target from a program's output.
type ScanBlock struct {
	Program hcl.Expression `hcl:"program"`
	Args    hcl.Expression `hcl:"args,optional"`
	Dir     hcl.Expression `hcl:"dir,optional"`
	Env     hcl.Expression `hcl:"env,optional"`
	Stdin   hcl.Expression `hcl:"stdin,optional"`
	// Skip drops the first entries of the output, usually the scanned file itself.
	Skip     int       `hcl:"skip,optional"`
	Format   string    `hcl:"format,optional"`
	// Query is a JSONPath expression selecting the names from JSON output.
	Query    string    `hcl:"query,optional"`
	DefRange hcl.Range `hcl:",def_range"`
}

type WriteBlock struct {
	Path     hcl.Expression `hcl:"path,optional"`
	Content  hcl.Expression `hcl:"content"`
	DefRange hcl.Range      `hcl:",def_range"`
}
