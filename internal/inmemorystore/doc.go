// Package inmemorystore implements nodestore.Store with maps guarded by a
// mutex. A Store is the memo of one invocation: every target is claimed,
// built and finished in it at most once.
package inmemorystore
