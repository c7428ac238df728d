// Package reactive implements the lazy, memoized cell graph that drives a
// session.
//
// # Cells
//
// A Graph holds three kinds of cells:
//
//   - Sources hold values written from outside (interface controls).
//   - Computed cells derive a value from other cells and cache it.
//   - Observers are terminal sinks: computed cells with an effect that runs
//     when their value changes (render targets, explicit observers).
//
// # Evaluation
//
// Dependencies are discovered by reference capture: while a cell computes,
// every Get on another cell records an edge. The edge set is replaced on
// every recomputation, so a branch that stops reading a cell stops
// depending on it. Because wiring happens at first read, the order in which
// cells are declared never matters.
//
// Writing a source marks its downstream cells Stale but computes nothing.
// Stale observers are queued; Flush reads them, which pulls exactly the
// stale cells they depend on, each once. Only after every queued observer
// has settled do their effects run, so no effect ever sees a half-updated
// graph.
//
// Per-cell state machine:
//
//	Uninitialized ──read──▶ Computing ──▶ Clean ──invalidate──▶ Stale
//	                            ▲                                 │
//	                            └──────────────read───────────────┘
//	any state ──Destroy/Dispose──▶ Destroyed
//
// Reading a cell that is Computing means the computation reached itself;
// the read fails with a CycleError and the graph records the fault.
//
// # Concurrency
//
// A Graph is NOT safe for concurrent use. It belongs to exactly one
// session, whose event loop is its only caller. Separate graphs share
// nothing and may run on separate goroutines.
package reactive
