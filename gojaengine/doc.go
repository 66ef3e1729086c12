// Package gojaengine provides a reference Engine backed by the goja
// JavaScript interpreter.
//
// The bridge core is engine-agnostic: anything implementing
// scriptbridge.Engine can sit behind it. This package is the batteries
// included option for hosts that just want to run scripts:
//
//	b := bridge.New(gojaengine.New())
//	result, err := b.Evaluate(ctx, "double(21)")
//
// Host function names are installed as global callables inside the VM, so
// scripts call them like any other function. Arguments and results cross
// the boundary as exported Go values and are canonicalized by the bridge's
// wire codec.
//
// Script errors - syntax and runtime alike - are reported as execution
// errors with goja's source positions preserved in the message. Bridge
// errors raised by a host call (timeouts, misuse, protocol violations)
// propagate out of the VM with their kind intact.
package gojaengine
