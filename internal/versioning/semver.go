// Package versioning implements the version calculator, change detector
// registry, and cascade engine (C6): computing the next semantic version
// from a detected changelog and propagating version bumps to dependent
// data sources.
package versioning

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Strategy selects how a data source's version string is formatted and
// incremented, per source type.
type Strategy string

const (
	StrategyMajorMinor      Strategy = "major-minor"
	StrategyMajorMinorPatch Strategy = "major-minor-patch"
	StrategyDateBased       Strategy = "date-based"
)

// SemVer is a parsed major.minor[.patch] tuple; Patch is -1 when the
// strategy does not carry a patch component.
type SemVer struct {
	Major, Minor, Patch int
}

// ParseSemVer parses a dotted version string. Missing trailing components
// default to 0; a patch component absent from the input is reported as 0,
// not -1, so two-component strategies still compare correctly.
func ParseSemVer(s string) (SemVer, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) == 0 || len(parts) > 3 {
		return SemVer{}, fmt.Errorf("versioning: invalid semver %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return SemVer{}, fmt.Errorf("versioning: invalid semver component %q in %q: %w", p, s, err)
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare returns -1, 0, or 1 as a sorts before, equal to, or after b,
// comparing numerically (not lexically, so "10.0" sorts after "9.0").
func (a SemVer) Compare(b SemVer) int {
	if a.Major != b.Major {
		return cmpInt(a.Major, b.Major)
	}
	if a.Minor != b.Minor {
		return cmpInt(a.Minor, b.Minor)
	}
	return cmpInt(a.Patch, b.Patch)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (a SemVer) String(strategy Strategy) string {
	if strategy == StrategyMajorMinor {
		return fmt.Sprintf("%d.%d", a.Major, a.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", a.Major, a.Minor, a.Patch)
}

// BumpKind classifies the magnitude of a version increment.
type BumpKind string

const (
	BumpMajor BumpKind = "major"
	BumpMinor BumpKind = "minor"
	BumpPatch BumpKind = "patch"
	BumpNone  BumpKind = "none"
)

func (a SemVer) bump(kind BumpKind) SemVer {
	switch kind {
	case BumpMajor:
		return SemVer{Major: a.Major + 1, Minor: 0, Patch: 0}
	case BumpMinor:
		return SemVer{Major: a.Major, Minor: a.Minor + 1, Patch: 0}
	case BumpPatch:
		return SemVer{Major: a.Major, Minor: a.Minor, Patch: a.Patch + 1}
	default:
		return a
	}
}

// CalculateNextVersion applies the Strategy to a previous version string
// and a BumpKind (as determined by ClassifyChangelog), returning the next
// version's string form. Date-based sources ignore previous and instead
// format releaseDate as their new version.
func CalculateNextVersion(strategy Strategy, previous string, kind BumpKind, releaseDate time.Time) (string, error) {
	if strategy == StrategyDateBased {
		return releaseDate.Format("2006-01-02"), nil
	}
	prev, err := ParseSemVer(previous)
	if err != nil {
		return "", err
	}
	if strategy == StrategyMajorMinor && kind == BumpPatch {
		// A source versioned major-minor has no patch slot; a
		// corrective-only change still bumps minor so it is visible.
		kind = BumpMinor
	}
	return prev.bump(kind).String(strategy), nil
}
