package rules

// Kind classifies what a target produces and how its staleness is decided.
type Kind int

const (
	// File targets produce a file on disk at the path named by the target.
	File Kind = iota
	// Virtual targets produce no file; their state lives in the registry only.
	Virtual
	// Alias targets forward to exactly one other target.
	Alias
	// Group targets have members but no recipe.
	Group
	// Always targets run their recipe on every invocation that reaches them.
	Always
	// Source is an unruled name that exists in the workspace.
	Source
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Virtual:
		return "virtual"
	case Alias:
		return "alias"
	case Group:
		return "group"
	case Always:
		return "always"
	case Source:
		return "source"
	default:
		return "unknown"
	}
}

// HasRecipe reports whether targets of this kind run a recipe.
func (k Kind) HasRecipe() bool {
	return k == File || k == Virtual || k == Always
}
