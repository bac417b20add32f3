package testutil

import "time"

// Invocation is one command seen by a FakeRunner.
type Invocation struct {
	Program string
	Args    []string
	Dir     string
	Stdin   []byte
	Start   time.Time
	End     time.Time
}
