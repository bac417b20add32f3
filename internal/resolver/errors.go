package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/bootforge/internal/rules"
)

// ErrCyclicDependency matches every *CycleError with errors.Is.
var ErrCyclicDependency = errors.New("cyclic dependency")

// CycleError reports a dependency cycle. Path starts and ends with the same name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCyclicDependency }

// NotFoundError reports a name with no rule that does not exist on disk.
type NotFoundError struct {
	Name       string
	RequiredBy string
}

func (e *NotFoundError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("no rule to build %q", e.Name)
	}
	return fmt.Sprintf("no rule to build %q, required by %q", e.Name, e.RequiredBy)
}

func (e *NotFoundError) Is(target error) bool { return target == rules.ErrTargetNotFound }
