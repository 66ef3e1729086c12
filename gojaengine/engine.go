package gojaengine

import (
	"context"
	stderrors "errors"

	"github.com/dop251/goja"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
)

// Engine runs scripts on a goja JavaScript VM. It implements
// scriptbridge.Engine.
//
// Each Execute call builds a fresh VM, so concurrent evaluations are fully
// isolated; goja runtimes are not safe for concurrent use.
type Engine struct{}

var _ scriptbridge.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{}
}

// Execute runs the script to completion on the calling goroutine. Every
// registered host function name is installed as a global callable that
// forwards through calls. Cancellation of ctx interrupts the VM.
func (e *Engine) Execute(ctx context.Context, script string, calls scriptbridge.Dispatcher) (any, error) {
	vm := goja.New()

	for _, name := range calls.Names() {
		name := name
		trampoline := func(args ...any) (any, error) {
			return calls.Call(name, args)
		}
		if err := vm.Set(name, trampoline); err != nil {
			return nil, errors.New(errors.PhaseEval, errors.KindExecution).
				Function(name).
				Detail("install host function").
				Cause(err).
				Build()
		}
	}

	if ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
			case <-stop:
			}
		}()
	}

	v, err := vm.RunString(script)
	if err != nil {
		return nil, translateError(err)
	}
	return v.Export(), nil
}

// translateError unwraps goja's error wrappers. Bridge errors thrown back
// into the script by a trampoline surface unchanged so their kind survives
// the VM round trip; everything else becomes an execution error whose
// message keeps goja's source positions.
func translateError(err error) error {
	switch e := err.(type) {
	case *goja.Exception:
		var bridgeErr *errors.Error
		if stderrors.As(err, &bridgeErr) {
			return bridgeErr
		}
		if inner, ok := e.Value().Export().(error); ok {
			if be, isBridge := inner.(*errors.Error); isBridge {
				return be
			}
		}
		return errors.Execution(errors.PhaseEval, e.Error(), err)
	case *goja.InterruptedError:
		return errors.New(errors.PhaseEval, errors.KindExecution).
			Detail("script interrupted: %v", e.Value()).
			Cause(err).
			Build()
	case *goja.CompilerSyntaxError:
		return errors.Execution(errors.PhaseEval, e.Error(), err)
	}
	return errors.Execution(errors.PhaseEval, err.Error(), err)
}
