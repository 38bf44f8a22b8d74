package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesWrappedErr(t *testing.T) {
	wrapped := errors.New("connection refused")
	err := Transient(wrapped, "fetch %s", "uniprot")
	assert.Equal(t, "fetch uniprot: connection refused", err.Error())
	assert.Equal(t, wrapped, err.Unwrap())
}

func TestErrorMessageWithoutWrappedErr(t *testing.T) {
	err := NotFound("organization %q not found", "acme")
	assert.Equal(t, `organization "acme" not found`, err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestErrorIsComparesByCategoryOnly(t *testing.T) {
	a := NotFound("a")
	b := NotFound("b")
	c := Conflict("c")

	assert.True(t, errors.Is(a, &Error{Category: CategoryNotFound}))
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
	assert.False(t, errors.Is(a, errors.New("plain")))
}

func TestSourceNotFoundVersionNotFoundFormatNotAvailable(t *testing.T) {
	assert.Equal(t, CategoryNotFound, SourceNotFound("uniprot", "P01308").Category)
	assert.Equal(t, CategoryNotFound, VersionNotFound("uniprot", "P01308", "1.0").Category)
	assert.Equal(t, CategoryNotFound, FormatNotAvailable("uniprot", "P01308", "fasta").Category)
}

func TestCircularDependencyAndDependencyConflictAreConflictCategory(t *testing.T) {
	assert.Equal(t, CategoryConflict, CircularDependency("uniprot:P01308@1.0").Category)
	assert.Equal(t, CategoryConflict, DependencyConflict("uniprot:P01308@1.0", "1.0", "2.0").Category)
}

func TestCascadeCycleIsFatal(t *testing.T) {
	err := CascadeCycle("swissprot")
	assert.Equal(t, CategoryFatal, err.Category)
	assert.Nil(t, err.Unwrap())
}

func TestChecksumMismatchIsIntegrityFailure(t *testing.T) {
	err := ChecksumMismatch("uniprot/swissprot/2024_01/uniprot_sprot.fasta.gz", "abc", "def")
	assert.Equal(t, CategoryIntegrityFailure, err.Category)
	assert.Contains(t, err.Error(), "want abc got def")
}

func TestDiscoveryFailedWrapsTransientCategory(t *testing.T) {
	wrapped := errors.New("timeout")
	err := DiscoveryFailed("uniprot", wrapped)
	assert.Equal(t, CategoryTransient, err.Category)
	assert.ErrorIs(t, err, wrapped)
}
