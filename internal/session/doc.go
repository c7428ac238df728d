// Package session implements the Session Context: the isolated runtime
// state of one live interface connection.
//
// A Session owns a reactive graph, the root namespace scope, the registry
// from qualified identifiers to control cells and render observers, the
// composed interface tree, and the queue of pending interface events.
// Nothing in a session is reachable from another session.
//
// A session is created when a connection opens and torn down when it
// closes. Close disposes every cell and registration in one pass; after
// that every operation fails with ErrSessionClosed.
//
// Event handling and recomputation are single-threaded per session: the
// composition root's loop is the only caller of Set and Flush. Enqueue is
// safe from any goroutine.
package session
