package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/wire"
)

// maxArity bounds the number of positional arguments per call-site.
const maxArity = 10

// dispatcher binds one evaluation's execution context to the bridge's call
// router. It is what the engine sees; one instance per evaluation.
type dispatcher struct {
	b   *Bridge
	ec  *execContext
	ctx context.Context
}

var _ scriptbridge.Dispatcher = (*dispatcher)(nil)

func (d *dispatcher) Names() []string {
	return d.b.bindings.names()
}

func (d *dispatcher) Call(name string, args []any) (any, error) {
	return d.b.route(d.ctx, d.ec, name, args)
}

// route intercepts one script call-site: serializes arguments, chooses the
// inline or queued transport based on the context's mode, and resolves
// deferred outcomes. Protocol violations fail the single call only and
// never touch shared state.
func (b *Bridge) route(ctx context.Context, ec *execContext, name string, args []any) (wire.Value, error) {
	if len(args) > maxArity {
		callsTotal.WithLabelValues(pathFor(ec.mode), statusFailed).Inc()
		return nil, errors.New(errors.PhaseCall, errors.KindProtocol).
			Function(name).
			Detail("%d arguments exceed the maximum arity of %d", len(args), maxArity).
			Build()
	}

	binding, ok := b.bindings.lookup(name)
	if !ok {
		callsTotal.WithLabelValues(pathFor(ec.mode), statusFailed).Inc()
		return nil, errors.New(errors.PhaseCall, errors.KindNotFound).
			Function(name).
			Detail("function not registered").
			Build()
	}

	wargs := make([]wire.Value, len(args))
	for i, arg := range args {
		w, err := wire.FromNative(arg)
		if err != nil {
			callsTotal.WithLabelValues(pathFor(ec.mode), statusFailed).Inc()
			return nil, errors.New(errors.PhaseCall, errors.KindProtocol).
				Function(name).
				Detail("serialize argument %d", i).
				Cause(err).
				Build()
		}
		wargs[i] = w
	}

	if ec.mode == modeAsyncThread {
		return b.routeQueued(ctx, name, wargs)
	}
	return b.routeInline(ctx, ec, binding, wargs)
}

// routeQueued is the cross-thread path: direct host re-entry is unsafe off
// the host's own goroutine, so the request surfaces through the queue and
// this goroutine suspends until the host delivers.
func (b *Bridge) routeQueued(ctx context.Context, name string, args []wire.Value) (wire.Value, error) {
	b.logger.Debug("queueing host call",
		zap.String("function", name),
		zap.Int("args", len(args)))

	v, err := b.queue.enqueueAndWait(ctx, name, args, b.queueTimeout)
	if err != nil {
		callsTotal.WithLabelValues(pathQueued, statusFor(err)).Inc()
		return nil, err
	}
	callsTotal.WithLabelValues(pathQueued, statusCompleted).Inc()
	return v, nil
}

// routeInline invokes the adapter on the calling goroutine and resolves
// the outcome tag.
func (b *Bridge) routeInline(ctx context.Context, ec *execContext, binding *Binding, args []wire.Value) (wire.Value, error) {
	out := safeInvoke(binding, args)

	switch out.Kind {
	case scriptbridge.OutcomeSuccess:
		v, err := wire.FromNative(out.Value)
		if err != nil {
			callsTotal.WithLabelValues(pathInline, statusFailed).Inc()
			return nil, errors.New(errors.PhaseCall, errors.KindProtocol).
				Function(binding.Name).
				Detail("serialize host result").
				Cause(err).
				Build()
		}
		callsTotal.WithLabelValues(pathInline, statusCompleted).Inc()
		return v, nil

	case scriptbridge.OutcomePending:
		ec.noteAsync()
		if ec.mode == modeSync {
			// Nothing will ever await this operation; drop its channel so
			// repeated misuse does not leak table entries.
			if out.OperationID > 0 {
				b.pending.remove(out.OperationID)
			}
			callsTotal.WithLabelValues(pathInline, statusMisused).Inc()
			return nil, errors.Misuse(binding.Name)
		}
		if err := b.pending.attach(errors.PhaseCall, out.OperationID); err != nil {
			callsTotal.WithLabelValues(pathInline, statusFailed).Inc()
			return nil, errors.New(errors.PhaseCall, errors.KindProtocol).
				Function(binding.Name).
				Operation(out.OperationID).
				Detail("invalid pending outcome").
				Cause(err).
				Build()
		}
		b.logger.Debug("awaiting deferred result",
			zap.String("function", binding.Name),
			zap.Int64("operation", out.OperationID),
			zap.Duration("timeout", binding.Timeout))
		v, err := b.pending.await(ctx, errors.PhaseCall, out.OperationID, binding.Timeout)
		if err != nil {
			callsTotal.WithLabelValues(pathInline, statusFor(err)).Inc()
			return nil, err
		}
		callsTotal.WithLabelValues(pathInline, statusCompleted).Inc()
		return v, nil

	case scriptbridge.OutcomeError:
		callsTotal.WithLabelValues(pathInline, statusFailed).Inc()
		return nil, errors.New(errors.PhaseCall, errors.KindExecution).
			Function(binding.Name).
			Detail("%s", out.Message).
			Build()

	default:
		callsTotal.WithLabelValues(pathInline, statusFailed).Inc()
		return nil, errors.New(errors.PhaseCall, errors.KindProtocol).
			Function(binding.Name).
			Detail("unrecognized outcome tag %d", int(out.Kind)).
			Build()
	}
}

// safeInvoke calls the host function, converting a panic into an error
// outcome so a faulty host never takes down an evaluation goroutine.
func safeInvoke(binding *Binding, args []wire.Value) (out scriptbridge.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = scriptbridge.Fail(fmt.Sprintf("host function panic: %v", r))
		}
	}()
	return binding.Invoke(args)
}

func pathFor(m evalMode) string {
	if m == modeAsyncThread {
		return pathQueued
	}
	return pathInline
}

func statusFor(err error) string {
	switch {
	case errors.IsTimeout(err):
		return statusTimeout
	case errors.IsMisuse(err):
		return statusMisused
	default:
		return statusFailed
	}
}
