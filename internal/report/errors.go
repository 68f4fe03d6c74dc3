// Package report implements the pipeline's three error kinds (§4.7, §7) and
// a pterm-backed diagnostic display, grounded on the teacher's
// report/logging packages (LocalCompileError + Reporter log-level gating).
package report

import "fmt"

// Span is a source location, printed when available (§7: "surfaced to the
// user with a source location when available"). A nil *Span means no
// location information was carried through to the failing pass.
type Span struct {
	StartLine, StartCol int
	EndLine, EndCol     int
}

// InvalidArguments is raised when a function call's arguments have the
// wrong arity or types (§4.7). It carries the pass-supplied human-readable
// message verbatim.
type InvalidArguments struct {
	Function string
	Message  string
	Span     *Span
}

func (e *InvalidArguments) Error() string {
	return fmt.Sprintf("invalid arguments to %s: %s", e.Function, e.Message)
}

// NewInvalidArguments builds an InvalidArguments error with a formatted
// message, mirroring teacher's report.Raise(span, msg, args...).
func NewInvalidArguments(fn string, span *Span, format string, args ...interface{}) *InvalidArguments {
	return &InvalidArguments{Function: fn, Message: fmt.Sprintf(format, args...), Span: span}
}

// MesonException is raised for semantic rule violations: unknown language,
// unknown method on a typed object, object not callable (§4.7).
type MesonException struct {
	Message string
	Span    *Span
}

func (e *MesonException) Error() string { return e.Message }

func NewMesonException(span *Span, format string, args ...interface{}) *MesonException {
	return &MesonException{Message: fmt.Sprintf(format, args...), Span: span}
}

// InternalAssertion signals an invariant violation — a compiler bug, not a
// user error. It is never expected to be handled except by reporting ICE
// output and aborting.
type InternalAssertion struct {
	Message string
}

func (e *InternalAssertion) Error() string { return "internal assertion failed: " + e.Message }

func NewInternalAssertion(format string, args ...interface{}) *InternalAssertion {
	return &InternalAssertion{Message: fmt.Sprintf(format, args...)}
}
