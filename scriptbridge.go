package scriptbridge

import (
	"context"

	"github.com/wippyai/script-bridge/wire"
)

// OutcomeKind tags the result of a host function invocation.
type OutcomeKind int

const (
	// OutcomeInvalid is the zero value. A host function returning it is a
	// protocol violation and fails the call.
	OutcomeInvalid OutcomeKind = iota

	// OutcomeSuccess carries an immediately available wire value.
	OutcomeSuccess

	// OutcomePending declares that the result will be delivered later via
	// Bridge.CompletePending, identified by OperationID.
	OutcomePending

	// OutcomeError carries a host-side failure message.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePending:
		return "pending"
	case OutcomeError:
		return "error"
	default:
		return "invalid"
	}
}

// Outcome is the tagged result of a host function call: an immediate value,
// a deferred completion, or an error.
type Outcome struct {
	Kind        OutcomeKind
	Value       wire.Value
	OperationID int64
	Message     string
}

// Success returns an outcome carrying an immediate result.
func Success(v wire.Value) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: v}
}

// Pending returns an outcome whose result will be delivered later under the
// given operation id. The id must come from Bridge.NewOperationID; any other
// id fails the call with a protocol error.
func Pending(operationID int64) Outcome {
	return Outcome{Kind: OutcomePending, OperationID: operationID}
}

// Fail returns an error outcome carrying the given message.
func Fail(message string) Outcome {
	return Outcome{Kind: OutcomeError, Message: message}
}

// HostFunc is the invocation primitive of a host function binding. It
// receives arguments already serialized to wire values and must not block
// the host dispatcher; long-running work should return Pending instead.
type HostFunc func(args []wire.Value) Outcome

// Dispatcher is what the bridge hands an Engine so that script call-sites
// reach the call router. Implementations are bound to a single evaluation
// and are safe to call from the goroutine running that evaluation only.
type Dispatcher interface {
	// Names lists the registered host function names the engine should
	// expose to the script.
	Names() []string

	// Call routes one script call-site. Arguments are engine-native Go
	// values; the returned value is a wire value the engine converts back.
	Call(name string, args []any) (any, error)
}

// Engine is the opaque script-execution capability. Execute runs the script
// to completion on the calling goroutine, exposing every name from calls as
// a callable, and returns the script's final value as a native Go value.
// Implementations should stop execution when ctx is cancelled.
type Engine interface {
	Execute(ctx context.Context, script string, calls Dispatcher) (any, error)
}
