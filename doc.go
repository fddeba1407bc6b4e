package assemble

// Package assemble provides an implementation of the saga pattern in Go.
//
// A saga is a sequence of operations, each an action paired with an optional
// compensation, executed with automatic rollback when a step ultimately
// fails.  Sagas approximate a distributed transaction over independent
// side-effecting calls without two-phase commit.  For more on distributed
// sagas, see this 2017 JOTB talk by Caitie McCaffrey:
// https://www.youtube.com/watch?v=0UTOLRTwOX0
//
// Overview
//
// 1. Construct a saga:
//    - Use `New` with options such as `WithRetryAttempts` and `WithLogger`.
// 2. Declare operations:
//    - Use `Append` with a function, a `Bind(fn, args...)` call with
//      pre-bound positional arguments, or an action/compensation pair.
//    - The compensation runs only if its action succeeded and a later
//      operation failed.
// 3. Run the saga in one of two modes:
//    - `Orchestrate` executes actions strictly in declaration order on one
//      goroutine; on failure it compensates the completed operations in
//      reverse, synchronously.
//    - `Choreograph` executes all actions concurrently on a per-run worker
//      pool; on any failure it concurrently compensates only the operations
//      that succeeded.
// 4. Inspect the outcome:
//    - A successful run returns every action's output in declaration order.
//    - A failed run returns a single *SagaError carrying the failing
//      operation's identity and error plus any compensation outputs and
//      compensation errors.
//
// Example:
//
// For a detailed, documented example, refer to the examples/funds-transfer
// package.
