package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/wire"
)

const (
	// defaultQueueTimeout bounds queued cross-thread waits. It is the
	// timeout authority for the queued path; per-binding timeouts govern
	// inline waits only.
	defaultQueueTimeout = 30 * time.Second

	// defaultCallTimeout applies to bindings registered with a zero
	// timeout.
	defaultCallTimeout = 30 * time.Second

	// defaultMaxConcurrentEvals bounds the asynchronous evaluation pool.
	defaultMaxConcurrentEvals = 8
)

// Bridge coordinates script evaluations and their host function calls.
// All shared registries are owned by the Bridge value, not package state,
// so multiple independent instances can coexist.
//
// Bridge is safe for concurrent use. Host-facing methods (RegisterFunc,
// PollRequest, DeliverRequestResult, CompletePending, PollAsyncEval,
// CancelAsyncEval) never block; the suspension points live inside
// script-execution goroutines only.
type Bridge struct {
	engine       scriptbridge.Engine
	bindings     *bindingTable
	pending      *pendingTable
	queue        *requestQueue
	evals        *evalRegistry
	logger       *zap.Logger
	queueTimeout time.Duration
	closeOnce    sync.Once
}

// Option configures a Bridge.
type Option func(*config)

type config struct {
	logger             *zap.Logger
	queueTimeout       time.Duration
	maxConcurrentEvals int
}

// WithLogger sets the bridge's logger. A no-op logger is used by default.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithQueueTimeout sets the bound on queued cross-thread waits.
func WithQueueTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.queueTimeout = d
		}
	}
}

// WithMaxConcurrentEvals bounds the asynchronous evaluation worker pool.
func WithMaxConcurrentEvals(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxConcurrentEvals = n
		}
	}
}

// New creates a bridge around the given execution engine. The engine may
// be nil for host-only use; evaluation entry points then fail with an
// invalid input error.
func New(engine scriptbridge.Engine, opts ...Option) *Bridge {
	cfg := config{
		logger:             zap.NewNop(),
		queueTimeout:       defaultQueueTimeout,
		maxConcurrentEvals: defaultMaxConcurrentEvals,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	pending := newPendingTable()
	return &Bridge{
		engine:       engine,
		bindings:     newBindingTable(),
		pending:      pending,
		queue:        newRequestQueue(pending),
		evals:        newEvalRegistry(cfg.maxConcurrentEvals, cfg.logger),
		logger:       cfg.logger,
		queueTimeout: cfg.queueTimeout,
	}
}

// RegisterFunc registers a host function binding. Re-registering a name
// overwrites the previous binding; calls already dispatched complete
// against the binding they started with. A zero timeout selects the
// default. The timeout bounds inline waits for this binding's deferred
// results; queued waits use the bridge-wide queue timeout instead.
func (b *Bridge) RegisterFunc(name string, fn scriptbridge.HostFunc, timeout time.Duration) error {
	if err := b.bindings.register(name, fn, timeout); err != nil {
		return err
	}
	b.logger.Debug("registered host function",
		zap.String("function", name),
		zap.Duration("timeout", timeout))
	return nil
}

// NewOperationID allocates a fresh operation id with its completion
// channel, for hosts constructing Pending outcomes. Pending outcomes must
// carry an id from here; the router rejects any other id. The host
// completes it later with CompletePending.
func (b *Bridge) NewOperationID() (int64, error) {
	return b.pending.register(errors.PhaseCall)
}

// Evaluate runs the script synchronously on the calling goroutine and
// returns its final value as a wire value. If the script invokes a
// function that produced a deferred outcome, Evaluate fails with a misuse
// error directing the caller to StartAsyncEval. Must not be called from
// the host dispatcher goroutine if any binding blocks.
func (b *Bridge) Evaluate(ctx context.Context, script string) (wire.Value, error) {
	ec := &execContext{mode: modeSync}
	v, err := b.execute(ctx, script, ec)

	// The flag catches deferred outcomes even when the engine swallowed
	// or rewrapped the per-call misuse error. When that error survived,
	// return it: it names the offending function.
	if ec.takeAsync() {
		if errors.IsMisuse(err) {
			return nil, err
		}
		return nil, errors.Misuse("")
	}
	return v, err
}

// EvaluateBlocking runs the script on the calling goroutine like Evaluate,
// but deferred outcomes are awaited inline, bounded by each binding's
// timeout. For callers running off the host dispatcher goroutine that want
// a result without the polling round trip.
func (b *Bridge) EvaluateBlocking(ctx context.Context, script string) (wire.Value, error) {
	ec := &execContext{mode: modeBlocking}
	return b.execute(ctx, script, ec)
}

// StartAsyncEval records an in-progress evaluation and submits it to the
// worker pool. The script runs on a dedicated goroutine whose host calls
// surface through PollRequest; the final result is retrieved by polling
// the returned eval id.
func (b *Bridge) StartAsyncEval(ctx context.Context, script string) (int64, error) {
	if b.engine == nil {
		return 0, errors.InvalidInput(errors.PhaseEval, "no engine configured")
	}

	id := b.evals.start(ctx, func(evalCtx context.Context) (wire.Value, error) {
		ec := &execContext{mode: modeAsyncThread}
		return b.execute(evalCtx, script, ec)
	})
	b.logger.Debug("started async evaluation", zap.Int64("eval", id))
	return id, nil
}

// PollAsyncEval reports the evaluation's status. A terminal status is
// returned exactly once; the entry is removed and a later poll reports
// not_found.
func (b *Bridge) PollAsyncEval(id int64) (EvalResult, error) {
	return b.evals.poll(id)
}

// CancelAsyncEval removes the evaluation's bookkeeping entry and signals
// its context. The running task is not awaited: cancellation is
// best-effort and a result arriving afterwards is discarded.
func (b *Bridge) CancelAsyncEval(id int64) error {
	if err := b.evals.cancel(id); err != nil {
		return err
	}
	b.logger.Debug("cancelled async evaluation", zap.Int64("eval", id))
	return nil
}

// PollRequest drains one queued cross-thread request. Non-blocking;
// intended for the host's own processing loop. Requests surface strictly
// in enqueue order.
func (b *Bridge) PollRequest() (Request, bool) {
	return b.queue.dequeue()
}

// DeliverRequestResult completes a request previously drained with
// PollRequest. The value is canonicalized first; unknown operation ids
// return not_found.
func (b *Bridge) DeliverRequestResult(id int64, v wire.Value) error {
	cv, err := wire.FromNative(v)
	if err != nil {
		return errors.New(errors.PhaseQueue, errors.KindProtocol).
			Operation(id).
			Detail("serialize delivered result").
			Cause(err).
			Build()
	}
	return b.queue.deliver(id, cv)
}

// CompletePending resolves a previously returned Pending outcome. The
// value is canonicalized first; a second completion of the same id, or a
// completion after the waiter timed out, returns not_found.
func (b *Bridge) CompletePending(id int64, v wire.Value) error {
	cv, err := wire.FromNative(v)
	if err != nil {
		return errors.New(errors.PhaseCall, errors.KindProtocol).
			Operation(id).
			Detail("serialize completion value").
			Cause(err).
			Build()
	}
	return b.pending.complete(errors.PhaseCall, id, cv)
}

// PendingOperations reports the number of in-flight operations. Intended
// for tests and host-side introspection.
func (b *Bridge) PendingOperations() int {
	return b.pending.len()
}

// QueueDepth reports the number of undrained cross-thread requests.
func (b *Bridge) QueueDepth() int {
	return b.queue.len()
}

// Close shuts the bridge down: every in-flight wait observes a closed
// error, live evaluations are signalled to stop, and undrained requests
// are dropped. Close is idempotent.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.pending.close()
		b.evals.cancelAll()
		b.queue.clear()
		b.logger.Debug("bridge closed")
	})
	return nil
}

// execute runs the engine with a dispatcher bound to ec, converting the
// native result to a wire value. Panics from the engine or host callbacks
// are recovered here: the boundary never propagates an unhandled fault.
func (b *Bridge) execute(ctx context.Context, script string, ec *execContext) (v wire.Value, err error) {
	if b.engine == nil {
		return nil, errors.InvalidInput(errors.PhaseEval, "no engine configured")
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("recovered panic during evaluation", zap.Any("panic", r))
			v = nil
			err = errors.Execution(errors.PhaseEval, fmt.Sprintf("internal panic: %v", r), nil)
		}
	}()

	native, err := b.engine.Execute(ctx, script, &dispatcher{b: b, ec: ec, ctx: ctx})
	if err != nil {
		if _, ok := asBridgeError(err); ok {
			return nil, err
		}
		// Engine errors pass through unchanged, source positions included.
		return nil, errors.Execution(errors.PhaseEval, err.Error(), err)
	}

	result, convErr := wire.FromNative(native)
	if convErr != nil {
		return nil, errors.New(errors.PhaseEval, errors.KindProtocol).
			Detail("serialize evaluation result").
			Cause(convErr).
			Build()
	}
	return result, nil
}

func asBridgeError(err error) (*errors.Error, bool) {
	for err != nil {
		if e, ok := err.(*errors.Error); ok {
			return e, true
		}
		err = unwrap(err)
	}
	return nil, false
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}
