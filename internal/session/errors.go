package session

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by every operation on a session that has
// been torn down.
var ErrSessionClosed = errors.New("session closed")

func closedError(id, op string) error {
	return fmt.Errorf("%s on session %s: %w", op, id, ErrSessionClosed)
}
