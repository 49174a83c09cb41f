package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-sync-service/internal/domain"
	"cart-sync-service/internal/persist"
	"cart-sync-service/internal/syncer"
)

type countingTransport struct {
	mu     sync.Mutex
	pushes int
	clears int
}

func (c *countingTransport) Push(context.Context, []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes++
	return nil
}

func (c *countingTransport) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	return nil
}

func newTestRegistry(t *testing.T, slot persist.Slot, factory TransportFactory, window time.Duration) *Registry {
	t.Helper()
	r := NewRegistry(slot, factory, window, nil)
	t.Cleanup(r.Close)
	return r
}

func TestGet_EmptySlotYieldsEmptyCart(t *testing.T) {
	r := newTestRegistry(t, persist.NewMemorySlot(), nil, 0)

	sess, err := r.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, sess.Store.Lines())
	assert.Nil(t, sess.Syncer)
}

func TestGet_LoadsPersistedState(t *testing.T) {
	slot := persist.NewMemorySlot()
	data, err := domain.EncodeState([]domain.CartLine{
		{ID: "p1", Name: "Headphones", UnitPrice: 12999, Quantity: 2},
	})
	require.NoError(t, err)
	require.NoError(t, slot.Save(context.Background(), "sess-1", data))

	r := newTestRegistry(t, slot, nil, 0)
	sess, err := r.Get(context.Background(), "sess-1")
	require.NoError(t, err)

	require.Len(t, sess.Store.Lines(), 1)
	assert.Equal(t, 2, sess.Store.Quantity("p1"))
}

func TestGet_ReturnsSameSessionInstance(t *testing.T) {
	r := newTestRegistry(t, persist.NewMemorySlot(), nil, 0)
	ctx := context.Background()

	a, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)
	a.Store.Add(domain.CartLine{ID: "p1", UnitPrice: 500, Quantity: 2})

	b, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 2, b.Store.Quantity("p1"))
}

func TestGet_UndecodableStateStartsFresh(t *testing.T) {
	slot := persist.NewMemorySlot()
	require.NoError(t, slot.Save(context.Background(), "sess-1", []byte(`{"version":99}`)))

	r := newTestRegistry(t, slot, nil, 0)
	sess, err := r.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, sess.Store.Lines())
}

func TestGet_ConcurrentLoadsShareOneSession(t *testing.T) {
	r := newTestRegistry(t, persist.NewMemorySlot(), nil, 0)
	ctx := context.Background()

	const n = 16
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := r.Get(ctx, "sess-1")
			assert.NoError(t, err)
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestGet_WiresSyncerToStore(t *testing.T) {
	ct := &countingTransport{}
	factory := func(string) syncer.Transport { return ct }
	r := newTestRegistry(t, persist.NewMemorySlot(), factory, 10*time.Millisecond)

	sess, err := r.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, sess.Syncer)

	sess.Store.Add(domain.CartLine{ID: "p1", UnitPrice: 500, Quantity: 2})
	require.Eventually(t, func() bool {
		ct.mu.Lock()
		defer ct.mu.Unlock()
		return ct.pushes == 1
	}, time.Second, time.Millisecond)
}

func TestClear_LiveSessionClearsThroughStore(t *testing.T) {
	slot := persist.NewMemorySlot()
	r := newTestRegistry(t, slot, nil, 0)
	ctx := context.Background()

	sess, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)
	sess.Store.Add(domain.CartLine{ID: "p1", UnitPrice: 500, Quantity: 2})

	require.NoError(t, r.Clear(ctx, "sess-1"))
	assert.Empty(t, sess.Store.Lines())

	// The cleared state was persisted, not deleted.
	data, err := slot.Load(ctx, "sess-1")
	require.NoError(t, err)
	lines, err := domain.DecodeState(data)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestClear_ColdSessionDeletesSlot(t *testing.T) {
	slot := persist.NewMemorySlot()
	ctx := context.Background()
	require.NoError(t, slot.Save(ctx, "sess-1", []byte(`{}`)))

	r := newTestRegistry(t, slot, nil, 0)
	require.NoError(t, r.Clear(ctx, "sess-1"))

	_, err := slot.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, persist.ErrSlotEmpty)
}

func TestEvictIdle_DropsStaleSessionAndRematerializes(t *testing.T) {
	slot := persist.NewMemorySlot()
	r := newTestRegistry(t, slot, nil, 0)
	ctx := context.Background()

	sess, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)
	sess.Store.Add(domain.CartLine{ID: "p1", UnitPrice: 500, Quantity: 2})

	sess.lastAccess.Store(time.Now().Add(-time.Hour).UnixNano())
	r.evictIdle(time.Now())

	r.mu.RLock()
	_, live := r.sessions["sess-1"]
	r.mu.RUnlock()
	assert.False(t, live, "idle session should be evicted from the registry")

	// A returning visitor gets a fresh instance loaded from the slot.
	again, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.NotSame(t, sess, again)
	assert.Equal(t, 2, again.Store.Quantity("p1"))
}

func TestEvictIdle_KeepsActiveSessions(t *testing.T) {
	r := newTestRegistry(t, persist.NewMemorySlot(), nil, 0)
	ctx := context.Background()

	sess, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)

	r.evictIdle(time.Now())

	again, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Same(t, sess, again)
}

func TestEvictIdle_FlushesPendingSync(t *testing.T) {
	ct := &countingTransport{}
	factory := func(string) syncer.Transport { return ct }
	// A window this long never fires on its own; only the eviction flush
	// can transmit.
	r := newTestRegistry(t, persist.NewMemorySlot(), factory, time.Hour)
	ctx := context.Background()

	sess, err := r.Get(ctx, "sess-1")
	require.NoError(t, err)
	sess.Store.Add(domain.CartLine{ID: "p1", UnitPrice: 500, Quantity: 2})

	sess.lastAccess.Store(time.Now().Add(-time.Hour).UnixNano())
	r.evictIdle(time.Now())

	ct.mu.Lock()
	defer ct.mu.Unlock()
	assert.Equal(t, 1, ct.pushes)
}
