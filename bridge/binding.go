package bridge

import (
	"sort"
	"sync"
	"time"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
)

// Binding is one registered host function: identity, invocation primitive
// and the timeout applied when awaiting its deferred results inline.
// Bindings are immutable once stored; re-registration replaces the table
// entry with a new value, so calls already dispatched complete against the
// binding they started with.
type Binding struct {
	Name    string
	Invoke  scriptbridge.HostFunc
	Timeout time.Duration
}

// bindingTable maps function names to bindings, process-wide per bridge.
// A name resolves to exactly one binding at any instant.
type bindingTable struct {
	mu    sync.RWMutex
	funcs map[string]*Binding
}

func newBindingTable() *bindingTable {
	return &bindingTable{funcs: make(map[string]*Binding)}
}

func (t *bindingTable) register(name string, fn scriptbridge.HostFunc, timeout time.Duration) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "function name cannot be empty")
	}
	if fn == nil {
		return errors.InvalidInput(errors.PhaseRegister, "invocation primitive cannot be nil")
	}
	if timeout < 0 {
		return errors.InvalidInput(errors.PhaseRegister, "timeout cannot be negative")
	}
	if timeout == 0 {
		timeout = defaultCallTimeout
	}

	t.mu.Lock()
	t.funcs[name] = &Binding{Name: name, Invoke: fn, Timeout: timeout}
	t.mu.Unlock()
	return nil
}

// lookup returns the current binding snapshot for name.
func (t *bindingTable) lookup(name string) (*Binding, bool) {
	t.mu.RLock()
	b, ok := t.funcs[name]
	t.mu.RUnlock()
	return b, ok
}

// names lists registered function names in stable order.
func (t *bindingTable) names() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		out = append(out, name)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}
