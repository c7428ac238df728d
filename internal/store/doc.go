// Package store provides the SQLite-backed session journal.
//
// The journal is append-only:
//   - Sessions: one row per opened session, with the hash of its app and
//     of its composed interface tree, stamped with the seq it closed at
//   - Events: every event the session consumed, content-addressed by
//     ir.EventID, including events the session rejected
//   - Deltas: every render-target change, keyed by (session, seq, target)
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps, and all
// queries break ties on id or target with COLLATE BINARY, so a replay
// compares identical result lists.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Values are stored as RFC 8785 canonical JSON.
package store
