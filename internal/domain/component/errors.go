// Package component defines the core value types shared by the lifecycle
// manager: component and tool identifiers, the metadata sidecar, and the
// error taxonomy every collaborator reports through.
package component

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure so callers can branch on cause
// without string matching.
type Kind int

const (
	// KindUnknown is the zero value; never constructed deliberately.
	KindUnknown Kind = iota
	KindFetch
	KindCompile
	KindInstantiation
	KindMarshal
	KindGuestTrap
	KindCapabilityDenied
	KindUnknownComponent
	KindUnknownTool
	KindAmbiguousTool
	KindPolicyParse
	KindInvalidPermission
	KindIO
	KindRegisterConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindCompile:
		return "compile"
	case KindInstantiation:
		return "instantiation"
	case KindMarshal:
		return "marshal"
	case KindGuestTrap:
		return "guest_trap"
	case KindCapabilityDenied:
		return "capability_denied"
	case KindUnknownComponent:
		return "unknown_component"
	case KindUnknownTool:
		return "unknown_tool"
	case KindAmbiguousTool:
		return "ambiguous_tool"
	case KindPolicyParse:
		return "policy_parse"
	case KindInvalidPermission:
		return "invalid_permission"
	case KindIO:
		return "io"
	case KindRegisterConflict:
		return "register_conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the single error type every lifecycle operation returns. Op names
// the failing operation (e.g. "load", "execute"); Err is the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, component.ErrKind(component.KindAmbiguousTool)).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an *Error for op/kind wrapping cause.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// ErrKind builds a sentinel suitable for errors.Is comparisons against Kind
// alone, ignoring Op and Err.
func ErrKind(kind Kind) error {
	return &Error{Kind: kind}
}

// KindOf extracts the Kind from err, or KindUnknown if err is not (or does
// not wrap) a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
