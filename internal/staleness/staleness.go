// Package staleness decides whether a resolved target has to be rebuilt.
package staleness

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vk/bootforge/internal/dag"
	"github.com/vk/bootforge/internal/resultstore"
	"github.com/vk/bootforge/internal/rules"
	"github.com/vk/bootforge/internal/workspace"
)

// Dep is the state of a dependency after it finished in this invocation.
type Dep struct {
	Name        string
	Kind        rules.Kind
	Rebuilt     bool
	Fingerprint string
}

// Decision is the verdict for one node, with a human readable reason.
type Decision struct {
	Stale  bool
	Reason string
}

func stale(format string, args ...any) Decision {
	return Decision{Stale: true, Reason: fmt.Sprintf(format, args...)}
}

var upToDate = Decision{Reason: "up to date"}

// Checker evaluates staleness against the workspace.
type Checker struct {
	ws *workspace.Workspace
}

// NewChecker returns a Checker reading file state from ws.
func NewChecker(ws *workspace.Workspace) *Checker {
	return &Checker{ws: ws}
}

// Decide returns whether n must be rebuilt given its dependencies' outcomes
// and the registry entry of its last build (nil if it was never built).
func (c *Checker) Decide(n *dag.Node, deps []Dep, entry *resultstore.Entry) Decision {
	switch n.Kind {
	case rules.Source:
		return Decision{Reason: "source"}
	case rules.Always:
		return stale("always runs")
	case rules.Group, rules.Alias:
		if d, ok := rebuiltDep(deps); ok {
			return stale("member %q was rebuilt", d)
		}
		return upToDate
	case rules.File:
		return c.decideFile(n, deps, entry)
	default:
		return decideRecorded(n, deps, entry)
	}
}

func (c *Checker) decideFile(n *dag.Node, deps []Dep, entry *resultstore.Entry) Decision {
	out, err := c.ws.Stat(n.Name)
	if err != nil {
		return stale("output %q is missing", n.Name)
	}
	if out.IsDir() {
		return stale("output %q is a directory", n.Name)
	}
	if d, ok := rebuiltDep(deps); ok {
		return stale("dependency %q was rebuilt", d)
	}
	if entry != nil {
		return decideRecorded(n, deps, entry)
	}
	// No history: fall back to comparing modification times.
	for _, d := range deps {
		if d.Kind != rules.File && d.Kind != rules.Source {
			continue
		}
		fi, err := c.ws.Stat(d.Name)
		if err != nil || fi.IsDir() {
			continue
		}
		if fi.ModTime().After(out.ModTime()) {
			return stale("dependency %q is newer than the output", d.Name)
		}
	}
	return upToDate
}

// decideRecorded compares the current dependencies against the ones recorded
// at the last build.
func decideRecorded(n *dag.Node, deps []Dep, entry *resultstore.Entry) Decision {
	if entry == nil {
		return stale("never built")
	}
	if len(n.Vanished) > 0 {
		return stale("dependency %q no longer exists", n.Vanished[0])
	}
	if d, ok := rebuiltDep(deps); ok {
		return stale("dependency %q was rebuilt", d)
	}
	if !sameSet(deps, entry.DepFingerprints) {
		return stale("dependency set changed")
	}
	for _, d := range deps {
		if entry.DepFingerprints[d.Name] != d.Fingerprint {
			return stale("dependency %q changed", d.Name)
		}
	}
	return upToDate
}

func rebuiltDep(deps []Dep) (string, bool) {
	for _, d := range deps {
		if d.Rebuilt {
			return d.Name, true
		}
	}
	return "", false
}

func sameSet(deps []Dep, recorded map[string]string) bool {
	if len(deps) != len(recorded) {
		return false
	}
	for _, d := range deps {
		if _, ok := recorded[d.Name]; !ok {
			return false
		}
	}
	return true
}

// Fingerprints maps dependency names to their current fingerprints, the
// form recorded in the registry.
func Fingerprints(deps []Dep) map[string]string {
	out := make(map[string]string, len(deps))
	for _, d := range deps {
		out[d.Name] = d.Fingerprint
	}
	return out
}

// Fingerprint identifies the current state of a finished node. Files and
// sources are fingerprinted on disk, virtual and always targets by the time
// of their last build, groups and aliases by their members.
func (c *Checker) Fingerprint(n *dag.Node, deps []Dep, entry *resultstore.Entry) (string, error) {
	switch n.Kind {
	case rules.File, rules.Source:
		return c.ws.Fingerprint(n.Name)
	case rules.Group, rules.Alias:
		h := sha256.New()
		for _, d := range deps {
			io.WriteString(h, d.Name)
			h.Write([]byte{0})
			io.WriteString(h, d.Fingerprint)
			h.Write([]byte{0})
		}
		return "members:" + hex.EncodeToString(h.Sum(nil)), nil
	default:
		if entry == nil {
			return "", nil
		}
		return entry.Fingerprint, nil
	}
}

// BuildStamp is the fingerprint recorded for targets without a file output.
func BuildStamp(t time.Time) string {
	return "built:" + strconv.FormatInt(t.UnixNano(), 10)
}
