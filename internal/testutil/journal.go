package testutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/weave/internal/ir"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MemJournal is an in-memory journal for tests. It satisfies
// engine.Journal.
type MemJournal struct {
	mu       sync.Mutex
	sessions map[string]ir.SessionRecord
	events   map[string][]ir.Event
	deltas   map[string][]ir.Delta
	closed   map[string]int64

	// FailEvents and FailDeltas make WriteEvent and WriteDeltas fail, to
	// exercise journal error paths.
	FailEvents bool
	FailDeltas bool
}

// ErrJournalFailure is returned by MemJournal when told to fail.
var ErrJournalFailure = errors.New("journal failure")

// NewMemJournal creates an empty journal.
func NewMemJournal() *MemJournal {
	return &MemJournal{
		sessions: make(map[string]ir.SessionRecord),
		events:   make(map[string][]ir.Event),
		deltas:   make(map[string][]ir.Delta),
		closed:   make(map[string]int64),
	}
}

// OpenSession records a session.
func (j *MemJournal) OpenSession(_ context.Context, rec ir.SessionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions[rec.ID] = rec
	return nil
}

// WriteEvent records an event.
func (j *MemJournal) WriteEvent(_ context.Context, ev ir.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FailEvents {
		return ErrJournalFailure
	}
	j.events[ev.Session] = append(j.events[ev.Session], ev)
	return nil
}

// WriteDeltas records the deltas of one recompute pass.
func (j *MemJournal) WriteDeltas(_ context.Context, sessionID string, deltas []ir.Delta) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FailDeltas {
		return ErrJournalFailure
	}
	j.deltas[sessionID] = append(j.deltas[sessionID], deltas...)
	return nil
}

// CloseSession records the closing seq.
func (j *MemJournal) CloseSession(_ context.Context, sessionID string, seq int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed[sessionID] = seq
	return nil
}

// Sessions returns the recorded session ids, sorted.
func (j *MemJournal) Sessions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := make([]string, 0, len(j.sessions))
	for id := range j.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Events returns a copy of the events recorded for a session.
func (j *MemJournal) Events(sessionID string) []ir.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ir.Event(nil), j.events[sessionID]...)
}

// Deltas returns a copy of the deltas recorded for a session.
func (j *MemJournal) Deltas(sessionID string) []ir.Delta {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ir.Delta(nil), j.deltas[sessionID]...)
}

// ClosedAt returns the closing seq of a session and whether it closed.
func (j *MemJournal) ClosedAt(sessionID string) (int64, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	seq, ok := j.closed[sessionID]
	return seq, ok
}

// Log assembles the journaled session for replay.
func (j *MemJournal) Log(sessionID string) (ir.SessionLog, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.sessions[sessionID]
	if !ok {
		return ir.SessionLog{}, false
	}
	return ir.SessionLog{
		Session: rec,
		Events:  append([]ir.Event(nil), j.events[sessionID]...),
		Deltas:  append([]ir.Delta(nil), j.deltas[sessionID]...),
	}, true
}
