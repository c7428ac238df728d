package store

import (
	"context"
	"fmt"

	"github.com/roach88/weave/internal/ir"
)

// OpenSession records a new session.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - reopening the same
// token is silently ignored.
func (s *Store) OpenSession(ctx context.Context, rec ir.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, app, app_hash, tree_hash, opened_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.App, rec.AppHash, rec.TreeHash, rec.OpenedSeq)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// WriteEvent appends an event. The event's ID is content-addressed, so a
// duplicate write is silently ignored.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) error {
	value, err := marshalValue(ev.Value)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if ev.ID == "" {
		ev.ID, err = ir.EventID(ev.Session, ev.Seq, ev.Target, ev.Value)
		if err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, session_id, seq, target, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ev.ID, ev.Session, ev.Seq, ev.Target, value)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteDeltas appends the deltas of one recompute pass in a single
// transaction.
func (s *Store) WriteDeltas(ctx context.Context, sessionID string, deltas []ir.Delta) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write deltas: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deltas (session_id, seq, target, value, error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write deltas: %w", err)
	}
	defer stmt.Close()

	for _, d := range deltas {
		value, err := marshalValue(d.Value)
		if err != nil {
			return fmt.Errorf("write delta %d/%s: %w", d.Seq, d.Target, err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, d.Seq, d.Target, value, d.Error); err != nil {
			return fmt.Errorf("write delta %d/%s: %w", d.Seq, d.Target, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write deltas: %w", err)
	}
	return nil
}

// CloseSession stamps the seq at which a session ended.
func (s *Store) CloseSession(ctx context.Context, sessionID string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET closed_seq = ? WHERE id = ?
	`, seq, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("close session: %w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}
