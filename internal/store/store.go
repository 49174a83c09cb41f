package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cart-sync-service/internal/domain"
)

// persistTimeout bounds the best-effort persistence call after a mutation.
const persistTimeout = time.Second

// Persister receives the encoded cart state after every mutation. Failures
// are absorbed by the store; in-memory state stays authoritative.
type Persister interface {
	Persist(ctx context.Context, data []byte) error
}

// CartStore holds the authoritative cart state for one session. All access
// goes through its methods; lines keep insertion order so derived snapshots
// serialize deterministically.
type CartStore struct {
	mu        sync.RWMutex
	lines     []domain.CartLine
	persister Persister
	onChange  func(domain.Snapshot)
	logger    *slog.Logger

	// pubMu serializes persist+notify in mutation order. It is acquired
	// before mu is released so a slow persist cannot let a later mutation
	// publish first, leaving stale state as the last durable write.
	pubMu sync.Mutex
}

// New creates a store seeded with previously persisted lines (nil for an
// empty cart). persister and onChange may be nil.
func New(lines []domain.CartLine, persister Persister, onChange func(domain.Snapshot), logger *slog.Logger) *CartStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CartStore{
		persister: persister,
		onChange:  onChange,
		logger:    logger,
	}
	for _, line := range lines {
		if line.ID == "" {
			continue
		}
		if line.Quantity < 1 {
			line.Quantity = 1
		}
		s.lines = append(s.lines, line)
	}
	return s
}

// Add merges item into the cart: an existing line for the same id has its
// quantity incremented, otherwise the line is appended. Quantities below 1
// are clamped to 1. The store enforces no upper bound; stock clamping is the
// caller's responsibility.
func (s *CartStore) Add(item domain.CartLine) {
	if item.ID == "" {
		return
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	s.mutate(func() {
		for i := range s.lines {
			if s.lines[i].ID == item.ID {
				s.lines[i].Quantity += item.Quantity
				return
			}
		}
		s.lines = append(s.lines, item)
	})
}

// Remove deletes the line with the given id. Removing an absent id is a
// no-op.
func (s *CartStore) Remove(id string) {
	s.mutate(func() {
		for i := range s.lines {
			if s.lines[i].ID == id {
				s.lines = append(s.lines[:i], s.lines[i+1:]...)
				return
			}
		}
	})
}

// SetQty sets the line's quantity to max(1, qty). Absent ids are ignored; a
// line is never created here.
func (s *CartStore) SetQty(id string, qty int) {
	if qty < 1 {
		qty = 1
	}
	s.mutate(func() {
		for i := range s.lines {
			if s.lines[i].ID == id {
				s.lines[i].Quantity = qty
				return
			}
		}
	})
}

// Clear empties the cart.
func (s *CartStore) Clear() {
	s.mutate(func() {
		s.lines = nil
	})
}

// Count returns the sum of all line quantities.
func (s *CartStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// Subtotal returns the sum of unit price times quantity across all lines,
// in minor currency units.
func (s *CartStore) Subtotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, line := range s.lines {
		total += line.UnitPrice * int64(line.Quantity)
	}
	return total
}

// Quantity returns the quantity held for a product id, 0 if absent.
func (s *CartStore) Quantity(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, line := range s.lines {
		if line.ID == id {
			return line.Quantity
		}
	}
	return 0
}

// Lines returns a copy of the cart lines in insertion order.
func (s *CartStore) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linesLocked()
}

// Snapshot returns the ordered {id, qty} projection of the cart.
func (s *CartStore) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *CartStore) linesLocked() []domain.CartLine {
	lines := make([]domain.CartLine, len(s.lines))
	copy(lines, s.lines)
	return lines
}

func (s *CartStore) snapshotLocked() domain.Snapshot {
	snap := make(domain.Snapshot, 0, len(s.lines))
	for _, line := range s.lines {
		snap = append(snap, domain.SnapshotItem{ID: line.ID, Qty: line.Quantity})
	}
	return snap
}

// mutate applies fn under the write lock, then persists the resulting state
// and notifies the observer. The publish lock is taken before the write lock
// is released, so effects drain in mutation order while reads proceed.
func (s *CartStore) mutate(fn func()) {
	s.mu.Lock()
	fn()
	lines := s.linesLocked()
	snap := s.snapshotLocked()
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	s.persist(lines)
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *CartStore) persist(lines []domain.CartLine) {
	if s.persister == nil {
		return
	}
	data, err := domain.EncodeState(lines)
	if err != nil {
		s.logger.Warn("encode cart state failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Persist(ctx, data); err != nil {
		s.logger.Warn("persist cart state failed", "error", err)
	}
}
