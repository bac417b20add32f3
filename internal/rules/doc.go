// Package rules holds the rule registry of the build engine.
//
// Rules are registered on a Builder, which validates them as they arrive, and
// are then frozen into an immutable Table. The Table is the only thing the
// resolver and the engine consult; there is no package level state.
//
// A name is looked up in two steps. Exact registrations (targets, groups,
// aliases, always and virtual targets) win outright. Otherwise the pattern
// rules are tried in the order they were registered and the first one whose
// regular expression matches the whole name is used.
package rules
