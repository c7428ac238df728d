// Package engine implements the composition root.
//
// A Root wraps one session.Session. It mounts module instances into the
// session, consumes interface events, and drives the recompute pass.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Each session processes its events on one goroutine. Sessions run side by
// side on their own goroutines and share nothing. This ensures:
//   - A recompute pass never interleaves with another event
//   - Replay reproduces the same deltas
//   - Simple reasoning about causality
//
// Event Processing Flow:
//  1. The transport enqueues (target, value) events
//  2. Root.Run() dequeues events one at a time
//  3. dispatch() stamps the event with the logical clock and journals it
//  4. The control's source cell is written; dependents go stale
//  5. The session flushes: stale render targets settle, then emit deltas
//  6. Deltas are journaled and handed to the Renderer
//
// CRITICAL PATTERNS:
//   - Logical clocks (seq), never wall time, order events and deltas
//   - Errors are classified into RuntimeError codes; CYCLIC_DEPENDENCY and
//     DUPLICATE_IDENTIFIER tear the session down, the rest fail only the
//     operation that raised them
//   - After teardown every operation fails with SESSION_CLOSED
package engine
