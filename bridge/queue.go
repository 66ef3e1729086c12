package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/wire"
)

// Request is one host function call waiting to be serviced by the host's
// own goroutine. It is owned by the queue until drained via PollRequest.
type Request struct {
	Args        []wire.Value
	Function    string
	OperationID int64
}

// requestQueue is the cross-thread path: evaluations running on dedicated
// goroutines enqueue here instead of re-entering the host directly, and the
// host drains it by polling. Strict FIFO, no priorities.
type requestQueue struct {
	pending *pendingTable
	mu      sync.Mutex
	reqs    []Request
}

func newRequestQueue(pending *pendingTable) *requestQueue {
	return &requestQueue{pending: pending}
}

// enqueueAndWait appends a request, registers a completion channel for the
// same operation id, and suspends the calling goroutine until the host
// delivers a result or the queue-level timeout elapses. The timeout is
// separate from per-binding timeouts since the host loop itself may be
// busy.
func (q *requestQueue) enqueueAndWait(ctx context.Context, function string, args []wire.Value, timeout time.Duration) (wire.Value, error) {
	id, err := q.pending.register(errors.PhaseQueue)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.reqs = append(q.reqs, Request{
		OperationID: id,
		Function:    function,
		Args:        args,
	})
	queueDepth.Set(float64(len(q.reqs)))
	q.mu.Unlock()

	return q.pending.await(ctx, errors.PhaseQueue, id, timeout)
}

// dequeue removes and returns the oldest request. Non-blocking; intended
// for repeated host-side polling.
func (q *requestQueue) dequeue() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.reqs) == 0 {
		return Request{}, false
	}
	req := q.reqs[0]
	q.reqs = q.reqs[1:]
	queueDepth.Set(float64(len(q.reqs)))
	return req, true
}

// deliver completes the channel registered at enqueue time. Unknown ids
// are reported, never ignored.
func (q *requestQueue) deliver(id int64, v wire.Value) error {
	return q.pending.complete(errors.PhaseQueue, id, v)
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reqs)
}

// clear drops undrained requests. Their waiters are woken through the
// pending table's shutdown, not here.
func (q *requestQueue) clear() {
	q.mu.Lock()
	q.reqs = nil
	queueDepth.Set(0)
	q.mu.Unlock()
}
