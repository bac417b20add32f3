// Package cli is responsible for parsing command-line arguments, layering
// them over the settings file, and handling process-level concerns like exit
// codes. It translates flags into the application's configuration and runs
// the requested command.
package cli
