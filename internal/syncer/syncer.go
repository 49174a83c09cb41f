package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cart-sync-service/internal/domain"
)

// DefaultWindow is the quiescence delay before a changed snapshot is
// transmitted. Any change inside the window restarts it, so only the final
// state of a burst goes out.
const DefaultWindow = 250 * time.Millisecond

// pushTimeout bounds a single transmission attempt.
const pushTimeout = 5 * time.Second

// Transport delivers a serialized snapshot to the cookie endpoint. Clear
// expires the cookie instead of writing an empty payload.
type Transport interface {
	Push(ctx context.Context, payload []byte) error
	Clear(ctx context.Context) error
}

// Syncer replicates cart snapshots to a Transport, best effort and one
// directional. It never reads back from the server and never surfaces
// failures to its caller; a failed transmission is superseded by the next
// state change.
type Syncer struct {
	transport Transport
	window    time.Duration
	logger    *slog.Logger

	mu           sync.Mutex
	timer        *time.Timer
	pending      []byte
	pendingClear bool
	lastSent     string
	closed       bool
}

// New creates a syncer. window <= 0 selects DefaultWindow.
func New(transport Transport, window time.Duration, logger *slog.Logger) *Syncer {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		transport: transport,
		window:    window,
		logger:    logger,
	}
}

// Notify records a new cart snapshot. A snapshot identical to the last
// successfully transmitted one cancels any pending transmission and sends
// nothing; anything else (re)starts the debounce window.
func (s *Syncer) Notify(snap domain.Snapshot) {
	payload := domain.EncodeSnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if string(payload) == s.lastSent {
		s.stopTimerLocked()
		s.pending = nil
		return
	}

	s.pending = payload
	s.pendingClear = snap.Empty()
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.window, s.transmit)
}

// Flush sends any pending snapshot immediately instead of waiting out the
// debounce window. Used on shutdown.
func (s *Syncer) Flush() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
	s.transmit()
}

// Close cancels any pending transmission and stops the syncer. An in-flight
// transmission is not aborted; it completes or fails on its own.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
	s.pending = nil
}

func (s *Syncer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Syncer) transmit() {
	s.mu.Lock()
	payload := s.pending
	clearOp := s.pendingClear
	s.pending = nil
	s.timer = nil
	// A flush may race a just-completed transmission of the same bytes.
	if s.closed || payload == nil || string(payload) == s.lastSent {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	var err error
	if clearOp {
		err = s.transport.Clear(ctx)
	} else {
		err = s.transport.Push(ctx, payload)
	}
	if err != nil {
		// Absorbed: the marker stays put, so the next state change (or the
		// same state re-notified) retries naturally.
		s.logger.Debug("cart snapshot transmission failed", "error", err)
		return
	}

	s.mu.Lock()
	s.lastSent = string(payload)
	s.mu.Unlock()
}
