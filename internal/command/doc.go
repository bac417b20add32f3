// Package command runs the external tools recipes are built from.
//
// A Cmd describes one process invocation. Runners execute it: ExecRunner
// spawns a real process, Limited caps how many run at once. The helpers in
// this package (Output, Text, JSON, Query, ToFile) cover the ways recipes
// consume standard output.
package command
