// Package config defines the format-agnostic seam between build-file
// languages and the rule registry (Loader), and the optional settings file
// that supplies defaults for command-line flags.
//
// Concrete loaders, such as the HCL one, live in separate packages and
// register rules on a rules.Builder.
package config
