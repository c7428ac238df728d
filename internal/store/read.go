package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/weave/internal/ir"
)

// ErrSessionNotFound is returned for an unknown session token.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession returns the record of one session.
func (s *Store) ReadSession(ctx context.Context, sessionID string) (ir.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app, app_hash, tree_hash, opened_seq, closed_seq
		FROM sessions
		WHERE id = ?
	`, sessionID)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return rec, err
}

// ListSessions returns every journaled session ordered by opening seq then
// id. An empty app matches all applications.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context, app string) ([]ir.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app, app_hash, tree_hash, opened_seq, closed_seq
		FROM sessions
		WHERE ? = '' OR app = ?
		ORDER BY opened_seq ASC, id COLLATE BINARY ASC
	`, app, app)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadEvents returns a session's events.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, target, value
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			ev    ir.Event
			value string
		)
		if err := rows.Scan(&ev.ID, &ev.Session, &ev.Seq, &ev.Target, &value); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Value, err = unmarshalValue(value); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadDeltas returns a session's deltas ordered by seq then target.
func (s *Store) ReadDeltas(ctx context.Context, sessionID string) ([]ir.Delta, error) {
	return s.readDeltas(ctx, `
		SELECT seq, target, value, error
		FROM deltas
		WHERE session_id = ?
		ORDER BY seq ASC, target COLLATE BINARY ASC
	`, sessionID)
}

// ReadTargetDeltas returns the history of one render target.
func (s *Store) ReadTargetDeltas(ctx context.Context, sessionID, target string) ([]ir.Delta, error) {
	return s.readDeltas(ctx, `
		SELECT seq, target, value, error
		FROM deltas
		WHERE session_id = ? AND target = ?
		ORDER BY seq ASC
	`, sessionID, target)
}

func (s *Store) readDeltas(ctx context.Context, query string, args ...any) ([]ir.Delta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deltas: %w", err)
	}
	defer rows.Close()

	deltas := []ir.Delta{}
	for rows.Next() {
		var (
			d     ir.Delta
			value string
		)
		if err := rows.Scan(&d.Seq, &d.Target, &value, &d.Error); err != nil {
			return nil, fmt.Errorf("scan delta: %w", err)
		}
		if d.Value, err = unmarshalValue(value); err != nil {
			return nil, fmt.Errorf("delta %d/%s: %w", d.Seq, d.Target, err)
		}
		deltas = append(deltas, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deltas: %w", err)
	}
	return deltas, nil
}

// ReadSessionLog assembles everything journaled for a session, for replay.
func (s *Store) ReadSessionLog(ctx context.Context, sessionID string) (ir.SessionLog, error) {
	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return ir.SessionLog{}, err
	}
	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return ir.SessionLog{}, err
	}
	deltas, err := s.ReadDeltas(ctx, sessionID)
	if err != nil {
		return ir.SessionLog{}, err
	}
	return ir.SessionLog{Session: rec, Events: events, Deltas: deltas}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (ir.SessionRecord, error) {
	var (
		rec    ir.SessionRecord
		closed sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.App, &rec.AppHash, &rec.TreeHash, &rec.OpenedSeq, &closed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan session: %w", err)
	}
	if closed.Valid {
		rec.ClosedSeq = closed.Int64
		rec.Closed = true
	}
	return rec, nil
}
