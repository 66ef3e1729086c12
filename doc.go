// Package scriptbridge bridges a script execution engine and its host
// application across a runtime boundary.
//
// A script engine runs on its own goroutine and calls host-provided
// functions. Some functions complete immediately; others complete later
// through the host's own event loop. The bridge routes those calls, tracks
// in-flight operations, and supervises background evaluations so the host
// can discover completion by polling - without the host's single dispatcher
// goroutine ever blocking.
//
// # Architecture Overview
//
// The library is organized into a small set of packages:
//
//	scriptbridge/        Root package with the Engine, Dispatcher and Outcome contracts
//	├── bridge/          Call router, pending-operation registry, request queue, eval registry
//	├── wire/            JSON-compatible wire value codec crossing the boundary
//	├── gojaengine/      Reference Engine implementation backed by goja
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Register a host function and evaluate a script:
//
//	b := bridge.New(gojaengine.New())
//	defer b.Close()
//
//	b.RegisterFunc("double", func(args []wire.Value) scriptbridge.Outcome {
//	    n, _ := args[0].(int64)
//	    return scriptbridge.Success(n * 2)
//	}, 5*time.Second)
//
//	result, err := b.Evaluate(ctx, "double(21)")
//	fmt.Println(result) // 42
//
// # Deferred Results
//
// A host function whose result arrives later returns a Pending outcome and
// the host completes it when ready:
//
//	b.RegisterFunc("fetch", func(args []wire.Value) scriptbridge.Outcome {
//	    id, _ := b.NewOperationID()
//	    go func() { b.CompletePending(id, doFetch(args)) }()
//	    return scriptbridge.Pending(id)
//	}, 30*time.Second)
//
// Synchronous Evaluate fails such calls with a misuse error; use
// StartAsyncEval (or EvaluateBlocking off the dispatcher goroutine) instead.
//
// # Asynchronous Evaluation
//
// StartAsyncEval runs the script on a worker goroutine. Host function calls
// made from that goroutine are queued; the host drains the queue on its own
// goroutine and delivers results by operation id:
//
//	id, _ := b.StartAsyncEval(ctx, "slow()")
//	for {
//	    if req, ok := b.PollRequest(); ok {
//	        b.DeliverRequestResult(req.OperationID, handle(req))
//	    }
//	    if res, err := b.PollAsyncEval(id); err == nil && res.Status != bridge.StatusInProgress {
//	        break
//	    }
//	}
//
// # Thread Safety
//
// Bridge is safe for concurrent use. Multiple evaluations, synchronous and
// asynchronous, may call into the same bindings concurrently. The only
// blocking points are the waits inside script-execution goroutines; the
// host-facing polling and delivery methods never block.
package scriptbridge
