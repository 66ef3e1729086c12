// Package errors provides structured error types for the script-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: binding name, operation id, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindProtocol).
//		Function("fetch").
//		Operation(42).
//		Detail("pending outcome without an operation id").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseQueue, "operation", 42)
//	err := errors.Timeout(errors.PhaseCall, 42, 30*time.Second)
//
// All errors implement the standard error interface and support errors.Is/As.
// The Is* predicates (IsNotFound, IsTimeout, IsMisuse, IsClosed) let hosts
// branch on error kinds without unwrapping manually.
package errors
