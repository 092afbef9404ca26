package reference

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/Masterminds/semver"
)

var igorVersionPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(\d)(\d)(?:\D|$)`)

// ParseIgorVersion converts an Igor Pro version string such as "9.01" into
// the semantic version 9.0.1. Unrecognized input yields 0.0.0.
func ParseIgorVersion(s string) *semver.Version {
	v := "0.0.0"
	if m := igorVersionPattern.FindStringSubmatch(s); m != nil {
		v = fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3])
	}
	version, err := semver.NewVersion(v)
	if err != nil {
		panic(err)
	}
	return version
}

// Gate decides item visibility for one target version.
type Gate struct {
	version *semver.Version

	mu          sync.Mutex
	constraints map[string]*semver.Constraints
}

// NewGate returns a gate for the target version.
func NewGate(version *semver.Version) *Gate {
	return &Gate{version: version, constraints: make(map[string]*semver.Constraints)}
}

// Version returns the target version.
func (g *Gate) Version() *semver.Version { return g.version }

// Available reports whether r admits the target version. A nil range or a
// malformed constraint admits everything.
func (g *Gate) Available(r *VersionRange) bool {
	if r == nil {
		return true
	}
	c := g.constraint(r.Range)
	return c == nil || c.Check(g.version)
}

// Deprecated reports whether r is set and admits the target version.
func (g *Gate) Deprecated(r *VersionRange) bool {
	if r == nil {
		return false
	}
	c := g.constraint(r.Range)
	return c != nil && c.Check(g.version)
}

func (g *Gate) constraint(expr string) *semver.Constraints {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.constraints[expr]; ok {
		return c
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		c = nil
	}
	g.constraints[expr] = c
	return c
}
