package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/wire"
)

// pendingOp is one in-flight operation. The channel is single-producer,
// single-consumer with capacity 1, so a completer never blocks on it.
type pendingOp struct {
	ch        chan wire.Value
	completed bool
}

// pendingTable correlates operation ids with single-use completion
// channels. Ids are process-unique and monotonically increasing, never
// reused. Locks guard insert/remove/lookup only; waiting happens outside.
type pendingTable struct {
	mu     sync.Mutex
	ops    map[int64]*pendingOp
	done   chan struct{}
	next   atomic.Int64
	closed bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		ops:  make(map[int64]*pendingOp),
		done: make(chan struct{}),
	}
}

// register allocates a fresh operation id and its completion channel.
func (p *pendingTable) register(phase errors.Phase) (int64, error) {
	id := p.next.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.Closed(phase)
	}
	p.ops[id] = &pendingOp{ch: make(chan wire.Value, 1)}
	pendingOperations.Inc()
	return id, nil
}

// attach validates the id carried by a Pending outcome before the router
// awaits it. register is the sole id source; an id with no live entry is a
// protocol violation, never a request for a new channel, so one id can
// never map to two channels.
func (p *pendingTable) attach(phase errors.Phase, id int64) error {
	if id <= 0 {
		return errors.Protocol(phase, "pending outcome without an operation id")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.Closed(phase)
	}
	if _, ok := p.ops[id]; !ok {
		return errors.Protocol(phase, "pending outcome with an operation id not allocated by the bridge")
	}
	return nil
}

// complete delivers a value and consumes the entry. A second complete on
// the same id, or a complete after the waiter timed out, returns not_found.
func (p *pendingTable) complete(phase errors.Phase, id int64, v wire.Value) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.Closed(phase)
	}
	op, ok := p.ops[id]
	if !ok || op.completed {
		p.mu.Unlock()
		return errors.NotFound(phase, "operation", id)
	}
	op.completed = true
	p.mu.Unlock()

	// Capacity-1 channel and the completed flag make this the sole send.
	op.ch <- v
	return nil
}

// await suspends the calling goroutine until the operation completes, the
// timeout elapses, ctx is cancelled, or the table shuts down. The entry is
// removed before any of those returns, so a late complete on the same id
// fails cleanly with not_found.
func (p *pendingTable) await(ctx context.Context, phase errors.Phase, id int64, timeout time.Duration) (wire.Value, error) {
	p.mu.Lock()
	op, ok := p.ops[id]
	p.mu.Unlock()
	if !ok {
		return nil, errors.NotFound(phase, "operation", id)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-op.ch:
		p.remove(id)
		return v, nil

	case <-timer.C:
		if v, delivered := p.abandon(id, op); delivered {
			return v, nil
		}
		callTimeouts.Inc()
		return nil, errors.Timeout(phase, id, timeout)

	case <-ctx.Done():
		if v, delivered := p.abandon(id, op); delivered {
			return v, nil
		}
		return nil, errors.New(phase, errors.KindExecution).
			Operation(id).
			Detail("wait cancelled").
			Cause(ctx.Err()).
			Build()

	case <-p.done:
		return nil, errors.Closed(phase)
	}
}

// abandon removes the waiter's entry, preferring a concurrently delivered
// value over the abandonment: a completer that already flipped the
// completed flag is committed to sending, so the value is taken instead of
// dropped.
func (p *pendingTable) abandon(id int64, op *pendingOp) (wire.Value, bool) {
	p.mu.Lock()
	cur, ok := p.ops[id]
	if ok && cur == op && cur.completed {
		p.mu.Unlock()
		v := <-op.ch
		p.remove(id)
		return v, true
	}
	if ok && cur == op {
		delete(p.ops, id)
		pendingOperations.Dec()
	}
	p.mu.Unlock()
	return nil, false
}

func (p *pendingTable) remove(id int64) {
	p.mu.Lock()
	if _, ok := p.ops[id]; ok {
		delete(p.ops, id)
		pendingOperations.Dec()
	}
	p.mu.Unlock()
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ops)
}

// close abandons every live channel. Waiters observe a closed error; later
// registers, completes and attaches fail the same way.
func (p *pendingTable) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pendingOperations.Sub(float64(len(p.ops)))
	p.ops = make(map[int64]*pendingOp)
	close(p.done)
	p.mu.Unlock()
}
