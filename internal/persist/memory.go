package persist

import (
	"context"
	"sync"
)

// MemorySlot implements Slot with in-process storage. Used when no Redis is
// configured and as the test double.
type MemorySlot struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{slots: make(map[string][]byte)}
}

func (m *MemorySlot) Save(_ context.Context, sessionID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.slots[sessionID] = buf
	return nil
}

func (m *MemorySlot) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.slots[sessionID]
	if !ok {
		return nil, ErrSlotEmpty
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (m *MemorySlot) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.slots, sessionID)
	return nil
}
