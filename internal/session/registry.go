package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"cart-sync-service/internal/domain"
	"cart-sync-service/internal/persist"
	"cart-sync-service/internal/store"
	"cart-sync-service/internal/syncer"
)

const (
	// sessionIdleTTL is how long a session may go untouched before its
	// live store is evicted. The slot keeps the state, so a returning
	// visitor rematerializes transparently.
	sessionIdleTTL = 30 * time.Minute

	// sweepInterval is how often the background eviction sweep runs.
	sweepInterval = time.Minute
)

// Session pairs a live cart store with the syncer replicating it.
type Session struct {
	ID     string
	Store  *store.CartStore
	Syncer *syncer.Syncer

	lastAccess atomic.Int64 // unix nanos
}

func (s *Session) touch() {
	s.lastAccess.Store(time.Now().UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastAccess.Load()))
}

// TransportFactory builds the cookie transport for one session. nil disables
// cookie sync entirely.
type TransportFactory func(sessionID string) syncer.Transport

// Registry owns the sid -> session mapping. Sessions are materialized on
// first use from the durable slot; singleflight keeps concurrent requests
// for the same sid from loading twice.
type Registry struct {
	slot         persist.Slot
	newTransport TransportFactory
	window       time.Duration
	logger       *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	sfg      singleflight.Group

	stopSweep chan struct{}
	wg        sync.WaitGroup
}

func NewRegistry(slot persist.Slot, newTransport TransportFactory, window time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		slot:         slot,
		newTransport: newTransport,
		window:       window,
		logger:       logger,
		sessions:     make(map[string]*Session),
		stopSweep:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sweepLoop()

	return r
}

// sweepLoop periodically evicts idle sessions so the registry stays bounded.
func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.stopSweep:
			return
		}
	}
}

// evictIdle drops every session untouched for longer than sessionIdleTTL,
// flushing its syncer on the way out. State survives in the slot.
func (r *Registry) evictIdle(now time.Time) {
	r.mu.Lock()
	var evicted []*Session
	for sid, sess := range r.sessions {
		if sess.idleSince(now) > sessionIdleTTL {
			delete(r.sessions, sid)
			evicted = append(evicted, sess)
		}
	}
	r.mu.Unlock()

	for _, sess := range evicted {
		if sess.Syncer != nil {
			sess.Syncer.Flush()
			sess.Syncer.Close()
		}
		r.logger.Debug("evicted idle cart session", "session_id", sess.ID)
	}
}

// Get returns the live session for sid, loading persisted state on miss. An
// empty slot yields an empty cart; an undecodable blob is discarded and the
// session starts fresh.
func (r *Registry) Get(ctx context.Context, sid string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[sid]
	r.mu.RUnlock()
	if ok {
		sess.touch()
		return sess, nil
	}

	v, err, _ := r.sfg.Do(sid, func() (interface{}, error) {
		r.mu.RLock()
		sess, ok := r.sessions[sid]
		r.mu.RUnlock()
		if ok {
			sess.touch()
			return sess, nil
		}

		lines, err := r.loadLines(ctx, sid)
		if err != nil {
			return nil, err
		}

		var sy *syncer.Syncer
		var onChange func(domain.Snapshot)
		if r.newTransport != nil {
			sy = syncer.New(r.newTransport(sid), r.window, r.logger)
			onChange = sy.Notify
		}
		st := store.New(lines, slotPersister{slot: r.slot, sid: sid}, onChange, r.logger)
		sess = &Session{ID: sid, Store: st, Syncer: sy}
		sess.touch()

		r.mu.Lock()
		r.sessions[sid] = sess
		r.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Clear empties the cart for sid. A live session clears through its store
// (which persists and syncs); otherwise the slot entry is deleted directly.
func (r *Registry) Clear(ctx context.Context, sid string) error {
	r.mu.RLock()
	sess, ok := r.sessions[sid]
	r.mu.RUnlock()
	if ok {
		sess.Store.Clear()
		return nil
	}
	if err := r.slot.Delete(ctx, sid); err != nil {
		return err
	}
	return nil
}

// Close stops the eviction sweep, then flushes and stops every session's
// syncer. Called on shutdown.
func (r *Registry) Close() {
	close(r.stopSweep)
	r.wg.Wait()

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		if sess.Syncer != nil {
			sess.Syncer.Flush()
			sess.Syncer.Close()
		}
	}
}

func (r *Registry) loadLines(ctx context.Context, sid string) ([]domain.CartLine, error) {
	data, err := r.slot.Load(ctx, sid)
	if errors.Is(err, persist.ErrSlotEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := domain.DecodeState(data)
	if err != nil {
		r.logger.Warn("discarding undecodable cart state", "session_id", sid, "error", err)
		return nil, nil
	}
	return lines, nil
}

// slotPersister binds a Slot to one session id for the store's persistence
// hook.
type slotPersister struct {
	slot persist.Slot
	sid  string
}

func (p slotPersister) Persist(ctx context.Context, data []byte) error {
	return p.slot.Save(ctx, p.sid, data)
}
