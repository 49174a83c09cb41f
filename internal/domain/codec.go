package domain

import (
	"encoding/json"
	"fmt"
)

// SlotKey is the durable persistence key for cart state. The version suffix
// must be bumped on any change to the persisted shape.
const SlotKey = "cart-storage-v1"

// SlotVersion is the version tag written into every persisted state blob.
const SlotVersion = 1

type persistedState struct {
	Version int        `json:"version"`
	Items   []CartLine `json:"items"`
}

// EncodeState serializes cart lines into the versioned persisted shape.
func EncodeState(lines []CartLine) ([]byte, error) {
	data, err := json.Marshal(persistedState{
		Version: SlotVersion,
		Items:   lines,
	})
	if err != nil {
		return nil, fmt.Errorf("encode cart state: %w", err)
	}
	return data, nil
}

// DecodeState deserializes a persisted state blob. A version other than
// SlotVersion is an error; there is no migration path, callers start fresh.
func DecodeState(data []byte) ([]CartLine, error) {
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode cart state: %w", err)
	}
	if state.Version != SlotVersion {
		return nil, fmt.Errorf("unsupported cart state version %d", state.Version)
	}
	return state.Items, nil
}

// EncodeSnapshot serializes a snapshot deterministically (items keep cart
// insertion order), so equal snapshots always produce equal bytes. The
// syncer uses this as its dedup key and as the wire payload.
func EncodeSnapshot(snap Snapshot) []byte {
	items := snap
	if items == nil {
		items = Snapshot{}
	}
	data, _ := json.Marshal(struct {
		Items Snapshot `json:"items"`
	}{Items: items})
	return data
}
