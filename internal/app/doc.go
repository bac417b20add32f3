// Package app contains the core application logic. It wires the workspace,
// build-file loader, registry and engine together and exposes the build,
// graph, registry and watch operations, decoupled from any specific
// entrypoint like a CLI.
package app
