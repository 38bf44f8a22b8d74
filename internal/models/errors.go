package models

import "fmt"

// Category is the user-visible error classification from the error handling
// design: callers switch on category to pick an exit code or HTTP
// status, never on the concrete error type.
type Category string

const (
	CategoryInputInvalid     Category = "input_invalid"
	CategoryNotInitialized   Category = "not_initialized"
	CategoryAlreadyInit      Category = "already_initialized"
	CategoryNotFound         Category = "not_found"
	CategoryConflict         Category = "conflict"
	CategoryIntegrityFailure Category = "integrity_failure"
	CategoryTransient        Category = "transient"
	CategoryFatal            Category = "fatal"
	CategoryCancelled        Category = "cancelled"
)

// Error is the common error shape carried through the ingestion pipeline,
// resolver, and CLI. Message names the resource, the expected state, and the
// corrective action where one exists.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target shares this error's category, so callers can
// write errors.Is(err, &Error{Category: CategoryNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

func newError(cat Category, format string, args ...interface{}) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(CategoryNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(CategoryConflict, format, args...)
}

func InvalidSpec(format string, args ...interface{}) *Error {
	return newError(CategoryInputInvalid, format, args...)
}

func NotInitialized(format string, args ...interface{}) *Error {
	return newError(CategoryNotInitialized, format, args...)
}

func AlreadyInitialized(format string, args ...interface{}) *Error {
	return newError(CategoryAlreadyInit, format, args...)
}

func IntegrityFailure(format string, args ...interface{}) *Error {
	return newError(CategoryIntegrityFailure, format, args...)
}

func Fatal(err error, format string, args ...interface{}) *Error {
	return &Error{Category: CategoryFatal, Message: fmt.Sprintf(format, args...), Err: err}
}

func Transient(err error, format string, args ...interface{}) *Error {
	return &Error{Category: CategoryTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

func Cancelled(format string, args ...interface{}) *Error {
	return newError(CategoryCancelled, format, args...)
}

// SourceNotFound, VersionNotFound, FormatNotAvailable are the specific
// NotFound diagnostics the manifest resolver raises while walking a spec.
func SourceNotFound(org, name string) *Error {
	return NotFound("source %s:%s not found", org, name)
}

func VersionNotFound(org, name, version string) *Error {
	return NotFound("version %s for %s:%s not found", version, org, name)
}

func FormatNotAvailable(org, name, format string) *Error {
	return NotFound("format %s not available for %s:%s", format, org, name)
}

// CircularDependency is raised by the resolver's transitive-expansion walk
// when a back-edge is found during the cycle-detection DFS.
func CircularDependency(spec string) *Error {
	return Conflict("circular dependency detected while resolving %s", spec)
}

// DependencyConflict is raised when the same dependency is reachable through
// two requested specs at different, unreconcilable versions.
func DependencyConflict(spec, versionA, versionB string) *Error {
	return Conflict("dependency conflict resolving %s: %s vs %s", spec, versionA, versionB)
}

// CascadeCycle is the fatal data-model violation surfaced when the
// dependent graph walked during cascade contains a cycle.
func CascadeCycle(entrySlug string) *Error {
	return Fatal(nil, "cascade cycle detected at registry entry %s", entrySlug)
}

// ChecksumMismatch is raised by the blob store and by the client cache when
// a downloaded blob's sha-256 does not match the expected digest.
func ChecksumMismatch(key, want, got string) *Error {
	return IntegrityFailure("checksum mismatch for %s: want %s got %s", key, want, got)
}

// DiscoveryFailed wraps a transient or fatal failure from a version
// discovery driver.
func DiscoveryFailed(source string, err error) *Error {
	return Transient(err, "version discovery failed for %s", source)
}
