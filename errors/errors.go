package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // host function registration
	PhaseCall     Phase = "call"     // script call-site routing
	PhaseQueue    Phase = "queue"    // cross-thread request queue
	PhaseEval     Phase = "eval"     // evaluation lifecycle
	PhaseWire     Phase = "wire"     // wire value serialization
)

// Kind categorizes the error
type Kind string

const (
	KindProtocol     Kind = "protocol"      // malformed outcome, missing operation id
	KindNotFound     Kind = "not_found"     // operation id or eval id absent
	KindTimeout      Kind = "timeout"       // pending/queued operation exceeded its bound
	KindExecution    Kind = "execution"     // failure inside the script engine or host function
	KindMisuse       Kind = "misuse"        // deferred-capable call during synchronous evaluation
	KindClosed       Kind = "closed"        // bridge shut down while an operation was in flight
	KindInvalidInput Kind = "invalid_input" // bad arguments at a public entry point
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Function  string // host function binding name, when known
	Operation int64  // operation or eval id, when known
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Function != "" {
		b.WriteString(" in ")
		b.WriteString(e.Function)
	}

	if e.Operation != 0 {
		fmt.Fprintf(&b, " (op %d)", e.Operation)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Function sets the host function binding name
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Operation sets the operation or eval id
func (b *Builder) Operation(id int64) *Builder {
	b.err.Operation = id
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Protocol creates a protocol violation error. Protocol violations are fatal
// to the single call only and never corrupt shared registries.
func Protocol(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocol,
		Detail: detail,
	}
}

// NotFound creates a not-found error for an absent operation or eval id
func NotFound(phase Phase, what string, id int64) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindNotFound,
		Operation: id,
		Detail:    fmt.Sprintf("%s %d not found", what, id),
	}
}

// Timeout creates a timeout error for an operation that exceeded its bound
func Timeout(phase Phase, id int64, d time.Duration) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTimeout,
		Operation: id,
		Detail:    fmt.Sprintf("no result after %s", d),
	}
}

// Execution wraps a failure from inside the script engine or a host
// function. The message is passed through unchanged, including source
// positions when the engine provides them.
func Execution(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExecution,
		Detail: detail,
		Cause:  cause,
	}
}

// Misuse creates the error returned when a synchronous evaluation calls a
// function that produced a deferred outcome
func Misuse(function string) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindMisuse,
		Function: function,
		Detail:   "function returned a deferred result; use an asynchronous evaluation instead of Evaluate",
	}
}

// Closed creates the error observed by waiters when the bridge shuts down
func Closed(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: "bridge closed",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Kind predicates for host-side branching

func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }
func IsTimeout(err error) bool  { return hasKind(err, KindTimeout) }
func IsMisuse(err error) bool   { return hasKind(err, KindMisuse) }
func IsClosed(err error) bool   { return hasKind(err, KindClosed) }
func IsProtocol(err error) bool { return hasKind(err, KindProtocol) }

func hasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
