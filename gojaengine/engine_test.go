package gojaengine

import (
	"context"
	"strings"
	"testing"
	"time"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/wire"
)

func newBridge(t *testing.T) *bridge.Bridge {
	t.Helper()
	b := bridge.New(New())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestExecute_HostCall(t *testing.T) {
	b := newBridge(t)

	err := b.RegisterFunc("double", func(args []wire.Value) scriptbridge.Outcome {
		n, ok := args[0].(int64)
		if !ok {
			return scriptbridge.Fail("expected an integer")
		}
		return scriptbridge.Success(n * 2)
	}, 0)
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	v, err := b.Evaluate(context.Background(), "double(21)")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v != int64(42) {
		t.Errorf("Evaluate = %v (%T), want 42", v, v)
	}
}

func TestExecute_ExpressionResult(t *testing.T) {
	b := newBridge(t)

	v, err := b.Evaluate(context.Background(), `({a: 1, b: [1.5, "x"]})`)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	m, ok := v.(map[string]wire.Value)
	if !ok {
		t.Fatalf("result type %T", v)
	}
	if m["a"] != int64(1) {
		t.Errorf("a = %v (%T), want int64 1", m["a"], m["a"])
	}
	arr, ok := m["b"].([]wire.Value)
	if !ok || len(arr) != 2 {
		t.Fatalf("b = %v", m["b"])
	}
	if arr[0] != float64(1.5) || arr[1] != "x" {
		t.Errorf("b = %v, want [1.5 x]", arr)
	}
}

func TestExecute_SyntaxError(t *testing.T) {
	b := newBridge(t)

	_, err := b.Evaluate(context.Background(), "let let = ;")
	if err == nil {
		t.Fatal("Evaluate of invalid script succeeded")
	}
	if !strings.Contains(err.Error(), "SyntaxError") {
		t.Errorf("error %q does not name the syntax error", err)
	}
}

func TestExecute_ThrownError(t *testing.T) {
	b := newBridge(t)

	_, err := b.Evaluate(context.Background(), `throw new Error("from script")`)
	if err == nil || !strings.Contains(err.Error(), "from script") {
		t.Errorf("Evaluate = %v, want thrown message preserved", err)
	}
}

// The misuse kind must survive the trampoline, the VM and the evaluation
// entry point.
func TestExecute_MisuseSurvivesVM(t *testing.T) {
	b := newBridge(t)

	err := b.RegisterFunc("deferred", func(args []wire.Value) scriptbridge.Outcome {
		id, err := b.NewOperationID()
		if err != nil {
			return scriptbridge.Fail(err.Error())
		}
		return scriptbridge.Pending(id)
	}, 0)
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	_, err = b.Evaluate(context.Background(), "deferred()")
	if !errors.IsMisuse(err) {
		t.Errorf("Evaluate = %v, want misuse", err)
	}
}

func TestExecute_NotFoundSurvivesVM(t *testing.T) {
	b := newBridge(t)

	err := b.RegisterFunc("known", func(args []wire.Value) scriptbridge.Outcome {
		return scriptbridge.Success(nil)
	}, 0)
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	// "unknown" is not installed as a global, so the script fails inside
	// the VM rather than at the router.
	_, err = b.Evaluate(context.Background(), "unknown()")
	if err == nil {
		t.Fatal("Evaluate of call to unregistered function succeeded")
	}
}

func TestExecute_ContextCancelInterrupts(t *testing.T) {
	b := newBridge(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := b.Evaluate(ctx, "while (true) {}")
	if err == nil {
		t.Fatal("Evaluate of infinite loop returned without error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("interrupt took %v", elapsed)
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("error %q does not report the interrupt", err)
	}
}

func TestExecute_BlockingDeferredResult(t *testing.T) {
	b := newBridge(t)

	err := b.RegisterFunc("fetch", func(args []wire.Value) scriptbridge.Outcome {
		id, err := b.NewOperationID()
		if err != nil {
			return scriptbridge.Fail(err.Error())
		}
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = b.CompletePending(id, int64(99))
		}()
		return scriptbridge.Pending(id)
	}, 0)
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	v, err := b.EvaluateBlocking(context.Background(), "fetch() + 1")
	if err != nil {
		t.Fatalf("EvaluateBlocking: %v", err)
	}
	if v != int64(100) {
		t.Errorf("EvaluateBlocking = %v (%T), want 100", v, v)
	}
}

func TestExecute_AsyncEvalRoundTrip(t *testing.T) {
	b := newBridge(t)

	err := b.RegisterFunc("lookup", func(args []wire.Value) scriptbridge.Outcome {
		return scriptbridge.Success(nil)
	}, 0)
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	evalID, err := b.StartAsyncEval(context.Background(), `lookup("key") + "!"`)
	if err != nil {
		t.Fatalf("StartAsyncEval: %v", err)
	}

	// Host loop: serve the queued request
	deadline := time.Now().Add(5 * time.Second)
	for {
		if req, ok := b.PollRequest(); ok {
			if req.Function != "lookup" || len(req.Args) != 1 || req.Args[0] != "key" {
				t.Fatalf("request = %+v", req)
			}
			if err := b.DeliverRequestResult(req.OperationID, "value"); err != nil {
				t.Fatalf("DeliverRequestResult: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no request surfaced within 5s")
		}
		time.Sleep(time.Millisecond)
	}

	for {
		res, err := b.PollAsyncEval(evalID)
		if err != nil {
			t.Fatalf("PollAsyncEval: %v", err)
		}
		if res.Status == bridge.StatusInProgress {
			if time.Now().After(deadline) {
				t.Fatal("eval still in progress after 5s")
			}
			time.Sleep(time.Millisecond)
			continue
		}
		if res.Status != bridge.StatusSuccess {
			t.Fatalf("eval status = %v (%s)", res.Status, res.Err)
		}
		if res.Value != "value!" {
			t.Errorf("eval value = %v, want value!", res.Value)
		}
		return
	}
}

func TestExecute_ConcurrentEvaluations(t *testing.T) {
	b := newBridge(t)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			v, err := b.Evaluate(context.Background(), "1 + 2")
			if err == nil && v != int64(3) {
				err = errors.InvalidInput(errors.PhaseEval, "wrong value")
			}
			done <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("evaluation %d: %v", i, err)
		}
	}
}
