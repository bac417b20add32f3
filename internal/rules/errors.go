package rules

import "errors"

var (
	// ErrTargetNotFound is returned when no exact rule or pattern matches a name.
	ErrTargetNotFound = errors.New("target not found")
	// ErrAmbiguousRuleConflict is returned when two exact rules claim the same name.
	ErrAmbiguousRuleConflict = errors.New("ambiguous rule conflict")
	// ErrInvalidRule is returned for rules that cannot be registered as given.
	ErrInvalidRule = errors.New("invalid rule")
)
