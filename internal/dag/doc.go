// Package dag holds the dependency graph of a single build invocation.
//
// A Graph is filled by the resolver: one Node per target name, with an edge
// from every dependency to its dependent. The executor walks it leaves-first.
// Graphs are never persisted; every invocation resolves its own.
package dag
