// Package engine runs build invocations.
//
// An Engine owns the long-lived collaborators: the rule table, the result
// registry, the workspace and the command runner. Each call to Build opens a
// Session, the invocation scope in which every target is built at most once,
// whether it is reached from the requested roots, from dynamic dependency
// discovery or from a recipe asking for another target to be updated.
package engine
