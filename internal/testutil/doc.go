// Package testutil holds deterministic stand-ins shared by package tests:
// a rewindable clock, a session token sequence, and an in-memory journal.
package testutil
