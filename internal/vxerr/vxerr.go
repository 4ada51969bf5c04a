// Package vxerr implements the tagged-variant error taxonomy from spec.md
// §7. Internal callers compare Kind with errors.As; only the CLI boundary
// renders a human-facing message.
package vxerr

import "fmt"

// Kind tags the category of a vx error.
type Kind string

const (
	UnknownRuntime         Kind = "UnknownRuntime"
	ProviderLoadError      Kind = "ProviderLoadError"
	ProviderCallbackError  Kind = "ProviderCallbackError"
	VersionNotFound        Kind = "VersionNotFound"
	ConstraintUnsatisfiable Kind = "ConstraintUnsatisfiable"
	PermissionDenied       Kind = "PermissionDenied"
	DownloadFailed         Kind = "DownloadFailed"
	ChecksumMismatch       Kind = "ChecksumMismatch"
	ExtractionFailed       Kind = "ExtractionFailed"
	NotInstallable         Kind = "NotInstallable"
	LockContention         Kind = "LockContention"
	Cancelled              Kind = "Cancelled"
	ChildFailed            Kind = "ChildFailed"
	SignalExit             Kind = "SignalExit"
	ShimMissing            Kind = "ShimMissing"
	ShimMalformed          Kind = "ShimMalformed"
	CircularDependency     Kind = "CircularDependency"
)

// Error is a vx domain error: a Kind plus the operation/context it occurred
// in and an optional wrapped cause.
type Error struct {
	Kind      Kind
	Operation string // e.g. "install", "resolve", "spawn"
	Runtime   string
	Version   string
	Path      string // path or URL, for I/O errors
	Hint      string // provider-supplied hint text, for NotInstallable
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Operation, e.Kind)

	if e.Runtime != "" {
		msg += fmt.Sprintf(" runtime=%s", e.Runtime)
	}

	if e.Version != "" {
		msg += fmt.Sprintf(" version=%s", e.Version)
	}

	if e.Path != "" {
		msg += fmt.Sprintf(" path=%s", e.Path)
	}

	if e.Hint != "" {
		msg += fmt.Sprintf(" (%s)", e.Hint)
	}

	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same Kind, so callers can write
// errors.Is(err, vxerr.New(vxerr.UnknownRuntime, "", nil)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == t.Kind
}

// New constructs an *Error for the given kind/operation/cause.
func New(kind Kind, operation string, err error) *Error {
	return &Error{Kind: kind, Operation: operation, Err: err}
}

// WithRuntime sets the Runtime/Version context and returns e for chaining.
func (e *Error) WithRuntime(runtime, version string) *Error {
	e.Runtime = runtime
	e.Version = version

	return e
}

// WithPath sets the Path context and returns e for chaining.
func (e *Error) WithPath(path string) *Error {
	e.Path = path

	return e
}

// WithHint sets the Hint context and returns e for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint

	return e
}

// ExitCode maps a Kind to the CLI exit code from spec.md §6.
func (k Kind) ExitCode() int {
	switch k {
	case UnknownRuntime, ShimMissing:
		return 127
	case SignalExit:
		return 1 // caller overrides with 128+N; see execpipe
	default:
		return 1
	}
}
