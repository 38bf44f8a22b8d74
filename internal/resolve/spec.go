// Package resolve implements the manifest resolver (C7): parsing source
// specs, walking the dependency graph, selecting versions, and producing
// signed download URLs for a resolved manifest. The resolver is a pure
// read: it never mutates the metadata store.
package resolve

import (
	"strings"

	"github.com/biopkg/bdp/internal/models"
)

// Spec is a parsed source specification: org:name[-format]@version.
type Spec struct {
	Raw     string
	Org     string
	Name    string
	Format  string
	Version string
}

func isAlnum(r byte) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isOrgChar(r byte) bool  { return isAlnum(r) || r == '_' || r == '-' }
func isNameChar(r byte) bool { return isAlnum(r) || r == '_' || r == '-' || r == '.' }

// ParseSpec hand-tokenizes a source spec of the form org:name[-format]@version,
// chosen over a regex so an invalid spec carries a field-level diagnostic
// naming exactly which part failed.
func ParseSpec(raw string) (Spec, error) {
	s := Spec{Raw: raw}

	colon := strings.IndexByte(raw, ':')
	if colon <= 0 {
		return Spec{}, models.InvalidSpec("spec %q: missing ':' separating organization from name", raw)
	}
	org := raw[:colon]
	for i := 0; i < len(org); i++ {
		if !isOrgChar(org[i]) {
			return Spec{}, models.InvalidSpec("spec %q: invalid character %q in organization", raw, org[i])
		}
	}
	s.Org = org

	rest := raw[colon+1:]
	at := strings.IndexByte(rest, '@')
	if at <= 0 {
		return Spec{}, models.InvalidSpec("spec %q: missing '@' separating name from version", raw)
	}
	namePart := rest[:at]
	s.Version = rest[at+1:]
	if s.Version == "" {
		return Spec{}, models.InvalidSpec("spec %q: empty version", raw)
	}

	if dash := strings.LastIndexByte(namePart, '-'); dash > 0 {
		candidateFormat := namePart[dash+1:]
		if isAllAlnum(candidateFormat) && candidateFormat != "" {
			s.Name = namePart[:dash]
			s.Format = candidateFormat
		}
	}
	if s.Name == "" {
		s.Name = namePart
	}

	for i := 0; i < len(s.Name); i++ {
		if !isNameChar(s.Name[i]) {
			return Spec{}, models.InvalidSpec("spec %q: invalid character %q in name", raw, s.Name[i])
		}
	}
	if s.Name == "" {
		return Spec{}, models.InvalidSpec("spec %q: empty name", raw)
	}

	return s, nil
}

func isAllAlnum(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlnum(s[i]) {
			return false
		}
	}
	return true
}

// String reconstructs the canonical spec text (without the format
// component).
func (s Spec) String() string {
	return s.Org + ":" + s.Name + "@" + s.Version
}
