package closurekit

import "fmt"

// ErrorKind enumerates the serializer's error taxonomy. All
// errors fail closed: no partial module text is ever returned alongside one.
type ErrorKind string

const (
	ErrUnparseableSource         ErrorKind = "UnparseableSource"
	ErrNativeFunctionUnsupported ErrorKind = "NativeFunctionUnsupported"
	ErrProbeUnavailable          ErrorKind = "ProbeUnavailable"
	ErrScopesMissing             ErrorKind = "ScopesMissing"
	ErrNotBound                  ErrorKind = "NotBound"
	ErrInvalidConfiguration      ErrorKind = "InvalidConfiguration"
	ErrCyclicPrototype           ErrorKind = "CyclicPrototype"
	ErrMalformedRegistryEntry    ErrorKind = "MalformedRegistryEntry"
	ErrUnresolvedFreeVariable    ErrorKind = "UnresolvedFreeVariable"
	ErrDuplicateRegistration     ErrorKind = "DuplicateRegistration"
)

// Error is returned by Serialize and by the component operations it calls.
// It always carries enough context to locate the offending sub-value: the
// name of the function being serialized when the failure occurred, and the
// dotted path from the root value (e.g. "free.handler.target").
type Error struct {
	Kind     ErrorKind
	Function string
	Path     string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Function == "" && e.Path == "":
		return fmt.Sprintf("closurekit: %s: %v", e.Kind, e.Err)
	case e.Path == "":
		return fmt.Sprintf("closurekit: %s in %q: %v", e.Kind, e.Function, e.Err)
	case e.Function == "":
		return fmt.Sprintf("closurekit: %s at %s: %v", e.Kind, e.Path, e.Err)
	default:
		return fmt.Sprintf("closurekit: %s in %q at %s: %v", e.Kind, e.Function, e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, function, path string, err error) *Error {
	return &Error{Kind: kind, Function: function, Path: path, Err: err}
}

func wrapf(kind ErrorKind, function, path, format string, args ...any) *Error {
	return newError(kind, function, path, fmt.Errorf(format, args...))
}
