package persist

import (
	"context"
	"errors"
)

// ErrSlotEmpty is returned by Load when no state is stored for a session.
var ErrSlotEmpty = errors.New("slot empty")

// Slot is a durable key-value slot for serialized cart state, keyed by
// session id. Implementations share last-write-wins semantics; no cross
// writer coordination is attempted.
type Slot interface {
	Save(ctx context.Context, sessionID string, data []byte) error
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Delete(ctx context.Context, sessionID string) error
}
