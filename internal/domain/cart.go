package domain

// CartLine is one distinct product held in a cart. Name and UnitPrice are
// captured at add-time and are not refreshed if the catalog changes later.
type CartLine struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // minor currency units (cents)
	Quantity  int    `json:"quantity"`
}

// SnapshotItem is the minimal projection of a line used for cookie sync.
type SnapshotItem struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

// Snapshot is the ordered {id, qty} projection of a cart. It is derived
// fresh on every read and never stored.
type Snapshot []SnapshotItem

// Empty reports whether the snapshot holds no items.
func (s Snapshot) Empty() bool {
	return len(s) == 0
}
