package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/wire"
)

// EvalStatus is the observable state of an asynchronous evaluation.
type EvalStatus int

const (
	StatusInProgress EvalStatus = iota
	StatusSuccess
	StatusError
)

func (s EvalStatus) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// EvalResult is one poll observation. Value is set for StatusSuccess, Err
// for StatusError.
type EvalResult struct {
	Value  wire.Value
	Err    string
	Status EvalStatus
}

type evalEntry struct {
	cancel context.CancelFunc
	value  wire.Value
	errMsg string
	status EvalStatus
}

// evalRegistry owns background evaluations and their terminal status.
// Status is append-once: InProgress moves to exactly one terminal state and
// is never rewritten. Terminal results are retrievable exactly once.
//
// Evaluations run as tasks on a bounded worker pool rather than one raw
// goroutine each; cancellation signals the task's context in addition to
// discarding observability of its result.
type evalRegistry struct {
	logger *zap.Logger
	evals  map[int64]*evalEntry
	slots  chan struct{}
	mu     sync.Mutex
	next   atomic.Int64
}

func newEvalRegistry(maxConcurrent int, logger *zap.Logger) *evalRegistry {
	return &evalRegistry{
		logger: logger,
		evals:  make(map[int64]*evalEntry),
		slots:  make(chan struct{}, maxConcurrent),
	}
}

// start records InProgress and submits run to the pool. It never blocks
// the caller: pool admission happens on the worker goroutine.
func (r *evalRegistry) start(ctx context.Context, run func(ctx context.Context) (wire.Value, error)) int64 {
	id := r.next.Add(1)
	evalCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.evals[id] = &evalEntry{status: StatusInProgress, cancel: cancel}
	r.mu.Unlock()
	evalsActive.Inc()

	go func() {
		defer cancel()

		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		case <-evalCtx.Done():
			r.finish(id, nil, errors.New(errors.PhaseEval, errors.KindExecution).
				Operation(id).
				Detail("cancelled before execution").
				Cause(evalCtx.Err()).
				Build())
			return
		}

		v, err := run(evalCtx)
		r.finish(id, v, err)
	}()

	return id
}

// finish writes the terminal status. A write targeting a removed entry is
// discarded: the evaluation was cancelled and its result is permanently
// unobservable.
func (r *evalRegistry) finish(id int64, v wire.Value, err error) {
	r.mu.Lock()
	entry, ok := r.evals[id]
	if !ok || entry.status != StatusInProgress {
		r.mu.Unlock()
		r.logger.Debug("discarding result of cancelled evaluation", zap.Int64("eval", id))
		evalsTotal.WithLabelValues(statusCancelled).Inc()
		return
	}
	if err != nil {
		entry.status = StatusError
		entry.errMsg = err.Error()
	} else {
		entry.status = StatusSuccess
		entry.value = v
	}
	r.mu.Unlock()
	evalsActive.Dec()

	if err != nil {
		evalsTotal.WithLabelValues(statusFailed).Inc()
	} else {
		evalsTotal.WithLabelValues(statusCompleted).Inc()
	}
}

// poll returns the current status. A terminal observation removes the
// entry, so each result is retrieved exactly once; the next poll reports
// not_found.
func (r *evalRegistry) poll(id int64) (EvalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.evals[id]
	if !ok {
		return EvalResult{}, errors.NotFound(errors.PhaseEval, "eval", id)
	}
	if entry.status == StatusInProgress {
		return EvalResult{Status: StatusInProgress}, nil
	}

	delete(r.evals, id)
	return EvalResult{
		Status: entry.status,
		Value:  entry.value,
		Err:    entry.errMsg,
	}, nil
}

// cancel removes the bookkeeping entry and signals the task's context. It
// does not wait for the task: cancellation is cooperative, and any later
// terminal write is discarded.
func (r *evalRegistry) cancel(id int64) error {
	r.mu.Lock()
	entry, ok := r.evals[id]
	if !ok {
		r.mu.Unlock()
		return errors.NotFound(errors.PhaseEval, "eval", id)
	}
	running := entry.status == StatusInProgress
	delete(r.evals, id)
	r.mu.Unlock()

	if running {
		evalsActive.Dec()
	}
	entry.cancel()
	return nil
}

// cancelAll signals every live evaluation. Used at bridge shutdown.
func (r *evalRegistry) cancelAll() {
	r.mu.Lock()
	entries := make([]*evalEntry, 0, len(r.evals))
	for id, entry := range r.evals {
		if entry.status == StatusInProgress {
			evalsActive.Dec()
		}
		entries = append(entries, entry)
		delete(r.evals, id)
	}
	r.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
}

func (r *evalRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.evals)
}
